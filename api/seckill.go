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
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/surgekit/surge"
	"github.com/surgekit/surge/api/middleware"
	apimodel "github.com/surgekit/surge/api/model"
	"github.com/surgekit/surge/internal/apierror"
)

// Seckill admits one reservation attempt. The admitted order number
// comes back immediately; the durable order materializes off the queue.
func (a Api) Seckill(c *gin.Context) {
	var req apimodel.SeckillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSeckillRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	// The authenticated identity wins over the body; the body user id
	// stays for whitelisted service-to-service calls.
	userID := req.UserID
	if id, ok := middleware.UserID(c); ok {
		userID = id
	}
	if userID <= 0 {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}

	orderNo, err := a.surge.Reserve(c.Request.Context(), surge.ReserveRequest{
		UserID:  userID,
		GoodsID: req.GoodsID,
		Count:   req.Count,
		Channel: req.Channel,
	})
	if err != nil {
		respond(c, nil, err)
		return
	}
	// The reservation id travels as a decimal string; the raw int64
	// loses precision in JavaScript clients.
	respond(c, strconv.FormatInt(orderNo, 10), nil)
}

// CheckSeckill polls the outcome of an earlier attempt. Data is the
// order number as a decimal string, "0" while the reservation is in
// flight, "-1" when the user holds none.
func (a Api) CheckSeckill(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	goodsID, err := strconv.ParseInt(c.Query("goodsId"), 10, 64)
	if err != nil {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	orderNo, err := a.surge.CheckReservation(c.Request.Context(), userID, goodsID)
	if err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, strconv.FormatInt(orderNo, 10), nil)
}
