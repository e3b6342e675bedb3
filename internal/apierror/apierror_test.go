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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFromCodeCarriesDefaultMessage(t *testing.T) {
	err := NewFromCode(CodeStockNotEnough)
	assert.Equal(t, CodeStockNotEnough, err.Code)
	assert.Equal(t, "out of stock", err.Message)
	assert.Equal(t, "1002: out of stock", err.Error())
}

func TestCodeOfUnwrapsWrappedErrors(t *testing.T) {
	inner := NewFromCode(CodeRepeatOrder)
	wrapped := fmt.Errorf("reserve: %w", inner)
	assert.Equal(t, CodeRepeatOrder, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeRepeatOrder))
}

func TestCodeOfDefaultsToSystemError(t *testing.T) {
	assert.Equal(t, CodeSystemError, CodeOf(errors.New("boom")))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeStockNotEnough, http.StatusOK},
		{CodeRepeatOrder, http.StatusOK},
		{CodeRateLimited, http.StatusOK},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeTokenInvalid, http.StatusUnauthorized},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeSystemError, http.StatusInternalServerError},
		{CodeServiceUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToHTTPStatus(NewFromCode(tt.code)), "code %d", tt.code)
	}
}
