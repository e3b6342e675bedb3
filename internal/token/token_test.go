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

package token

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgekit/surge/internal/apierror"
)

func TestGenerateAndParse(t *testing.T) {
	mgr := NewManager("test-secret", 24)

	signed, err := mgr.Generate(12345, "alice")
	require.NoError(t, err)

	claims, err := mgr.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), userID)
}

func TestParseWrongSecret(t *testing.T) {
	signed, err := NewManager("secret-a", 24).Generate(1, "bob")
	require.NoError(t, err)

	_, err = NewManager("secret-b", 24).Parse(signed)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeTokenInvalid, apierror.CodeOf(err))
}

func TestParseExpired(t *testing.T) {
	mgr := NewManager("test-secret", 24)

	// Sign a token whose expiry is already in the past with the same
	// secret and method the manager uses.
	past := time.Now().Add(-time.Hour)
	claims := Claims{
		Username: "carol",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = mgr.Parse(signed)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeTokenExpired, apierror.CodeOf(err))
}

func TestParseRejectsUnexpectedSigningMethod(t *testing.T) {
	mgr := NewManager("test-secret", 24)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = mgr.Parse(unsigned)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeTokenInvalid, apierror.CodeOf(err))
}

func TestUserIDRejectsNonNumericSubject(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-number"}}
	_, err := claims.UserID()
	assert.Error(t, err)

	claims.Subject = strconv.FormatInt(42, 10)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}
