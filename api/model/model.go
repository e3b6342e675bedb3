/*
Copyright 2025 Surge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/surgekit/surge/internal/apierror"
)

// Envelope is the uniform response body. Code carries the business
// result; the HTTP status only reflects transport-level outcomes.
type Envelope struct {
	Code      apierror.ErrorCode `json:"code"`
	Message   string             `json:"message"`
	Data      interface{}        `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

// OK wraps a successful payload.
func OK(data interface{}) Envelope {
	return Envelope{
		Code:      apierror.CodeSuccess,
		Message:   apierror.Message(apierror.CodeSuccess),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Fail wraps an error into the envelope, resolving unknown errors to a
// system error code.
func Fail(err error) Envelope {
	code := apierror.CodeOf(err)
	return Envelope{
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	}
}

type SeckillRequest struct {
	GoodsID int64  `json:"goodsId"`
	UserID  int64  `json:"userId"`
	Count   int    `json:"count"`
	Channel string `json:"channel"`
}

func (r *SeckillRequest) ValidateSeckillRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GoodsID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Count, validation.Min(0), validation.Max(10)),
	)
}

type StockRollbackRequest struct {
	GoodsID int64 `json:"goodsId"`
	Count   int   `json:"count"`
}

func (r *StockRollbackRequest) ValidateStockRollbackRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GoodsID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Count, validation.Required, validation.Min(1)),
	)
}

type StockSyncRequest struct {
	GoodsID int64 `json:"goodsId"`
	Count   int   `json:"count"`
}

func (r *StockSyncRequest) ValidateStockSyncRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GoodsID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Count, validation.Required, validation.Min(1)),
	)
}

type KilledMarkRemoveRequest struct {
	GoodsID int64 `json:"goodsId"`
	UserID  int64 `json:"userId"`
}

func (r *KilledMarkRemoveRequest) ValidateKilledMarkRemoveRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GoodsID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.UserID, validation.Required, validation.Min(int64(1))),
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) ValidateLoginRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (r *RegisterRequest) ValidateRegisterRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 32)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 64)),
	)
}
