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

package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the numeric business code carried in every response
// envelope. 200 is success, 4xx/5xx mirror HTTP, and the 1xxx ranges are
// reserved per concern: 1001-1099 stock/catalog, 1101-1199 order,
// 1201-1299 admission, 1301-1399 identity.
type ErrorCode int

const (
	CodeSuccess ErrorCode = 200

	CodeBadRequest       ErrorCode = 400
	CodeUnauthorized     ErrorCode = 401
	CodeForbidden        ErrorCode = 403
	CodeNotFound         ErrorCode = 404
	CodeMethodNotAllowed ErrorCode = 405

	CodeSystemError        ErrorCode = 500
	CodeServiceUnavailable ErrorCode = 503

	CodeGoodsNotExist      ErrorCode = 1001
	CodeStockNotEnough     ErrorCode = 1002
	CodeActivityNotStarted ErrorCode = 1003
	CodeActivityEnded      ErrorCode = 1004
	CodeGoodsOffShelf      ErrorCode = 1005

	CodeOrderNotExist    ErrorCode = 1101
	CodeOrderAlreadyPaid ErrorCode = 1102
	CodeOrderCancelled   ErrorCode = 1103
	CodeRepeatOrder      ErrorCode = 1104
	CodeOrderTimeout     ErrorCode = 1105
	CodeOrderStateError  ErrorCode = 1106

	CodeRateLimited     ErrorCode = 1201
	CodeSystemBusy      ErrorCode = 1202
	CodeServiceDegraded ErrorCode = 1203

	CodeUserNotExist  ErrorCode = 1301
	CodeUserExists    ErrorCode = 1302
	CodePasswordError ErrorCode = 1303
	CodeUserDisabled  ErrorCode = 1304
	CodePhoneExists   ErrorCode = 1305
	CodeTokenInvalid  ErrorCode = 1306
	CodeTokenExpired  ErrorCode = 1307
)

var defaultMessages = map[ErrorCode]string{
	CodeSuccess:            "success",
	CodeBadRequest:         "invalid request parameters",
	CodeUnauthorized:       "not logged in or session expired",
	CodeForbidden:          "access denied",
	CodeNotFound:           "resource not found",
	CodeMethodNotAllowed:   "method not allowed",
	CodeSystemError:        "system busy, please retry later",
	CodeServiceUnavailable: "service temporarily unavailable",
	CodeGoodsNotExist:      "item does not exist",
	CodeStockNotEnough:     "out of stock",
	CodeActivityNotStarted: "sale has not started",
	CodeActivityEnded:      "sale has ended",
	CodeGoodsOffShelf:      "item has been withdrawn",
	CodeOrderNotExist:      "order does not exist",
	CodeOrderAlreadyPaid:   "order already paid",
	CodeOrderCancelled:     "order already cancelled",
	CodeRepeatOrder:        "duplicate submission",
	CodeOrderTimeout:       "order has expired",
	CodeOrderStateError:    "illegal order state",
	CodeRateLimited:        "too many requests, please retry later",
	CodeSystemBusy:         "system busy, please retry later",
	CodeServiceDegraded:    "service degraded, please retry later",
	CodeUserNotExist:       "user does not exist",
	CodeUserExists:         "username already taken",
	CodePasswordError:      "wrong password",
	CodeUserDisabled:       "user is disabled",
	CodePhoneExists:        "phone number already registered",
	CodeTokenInvalid:       "token invalid",
	CodeTokenExpired:       "token expired, please log in again",
}

// APIError is the typed business failure surfaced through the response
// envelope. Details never reach the client; they are for logs only.
type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// New creates an APIError with an explicit message.
func New(code ErrorCode, message string, details interface{}) APIError {
	return APIError{Code: code, Message: message, Details: details}
}

// NewFromCode creates an APIError carrying the code's default message.
func NewFromCode(code ErrorCode) APIError {
	return APIError{Code: code, Message: defaultMessages[code]}
}

// Message returns the default message for a code, or a generic one when
// the code is unknown.
func Message(code ErrorCode) string {
	if m, ok := defaultMessages[code]; ok {
		return m
	}
	return "unknown error"
}

// CodeOf extracts the business code from err, defaulting to 500.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeSystemError
}

// Is reports whether err is an APIError with the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// MapErrorToHTTPStatus maps an error to the HTTP status the envelope is
// sent with. Business codes (1xxx) ride on 200 with the code in the body;
// identity failures ride on 401 so gateways and clients can triage
// without parsing.
func MapErrorToHTTPStatus(err error) int {
	switch code := CodeOf(err); {
	case code == CodeTokenInvalid || code == CodeTokenExpired:
		return http.StatusUnauthorized
	case code >= 400 && code < 600:
		return int(code)
	default:
		return http.StatusOK
	}
}
