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

// Package token issues and verifies the signed bearer tokens the API
// gateway trusts for per-user admission decisions.
package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/surgekit/surge/internal/apierror"
)

// Claims carried in every issued token. The subject holds the user id
// in decimal form.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into the numeric user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "token subject is not a user id")
	}
	return id, nil
}

// Manager signs and parses HS256 tokens with a shared secret.
type Manager struct {
	secret   []byte
	lifetime time.Duration
}

// NewManager builds a manager. lifetimeHours below 1 defaults to 24.
func NewManager(secret string, lifetimeHours int) *Manager {
	if lifetimeHours < 1 {
		lifetimeHours = 24
	}
	return &Manager{
		secret:   []byte(secret),
		lifetime: time.Duration(lifetimeHours) * time.Hour,
	}
}

// Generate signs a token for the user.
func (m *Manager) Generate(userID int64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the claims. An
// expired token maps to CodeTokenExpired so callers can tell the client
// to refresh rather than re-login; every other defect is CodeTokenInvalid.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierror.NewFromCode(apierror.CodeTokenExpired)
		}
		return nil, apierror.New(apierror.CodeTokenInvalid, apierror.Message(apierror.CodeTokenInvalid), err.Error())
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apierror.NewFromCode(apierror.CodeTokenInvalid)
	}
	return claims, nil
}
