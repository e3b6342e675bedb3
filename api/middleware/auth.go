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

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/internal/token"
)

const (
	// Context keys set by the auth middleware for downstream handlers.
	CtxUserID   = "userId"
	CtxUsername = "username"

	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserToken = "X-User-Token"
)

// AuthMiddleware verifies the bearer token on every route not listed in
// the configured whitelist and annotates the request with the caller's
// identity.
type AuthMiddleware struct {
	tokens *token.Manager
}

func NewAuthMiddleware(tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func whitelisted(path string, whitelist []string) bool {
	for _, p := range whitelist {
		if path == p {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := config.Fetch()
		if err != nil {
			abortWith(c, http.StatusInternalServerError, apierror.NewFromCode(apierror.CodeSystemError))
			return
		}
		if whitelisted(c.Request.URL.Path, conf.Jwt.Whitelist) {
			c.Next()
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			abortWith(c, http.StatusUnauthorized, apierror.NewFromCode(apierror.CodeUnauthorized))
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			abortWith(c, apierror.MapErrorToHTTPStatus(err), err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			abortWith(c, http.StatusUnauthorized, apierror.NewFromCode(apierror.CodeTokenInvalid))
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxUsername, claims.Username)
		c.Request.Header.Set(HeaderUserID, claims.Subject)
		c.Request.Header.Set(HeaderUserName, claims.Username)
		c.Request.Header.Set(HeaderUserToken, raw)
		c.Next()
	}
}

// bearerToken pulls the token from the Authorization header, falling
// back to the X-User-Token header clients behind some gateways use.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.GetHeader(HeaderUserToken)
}

// UserID returns the authenticated user id set by Authenticate.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func abortWith(c *gin.Context, status int, err error) {
	code := apierror.CodeOf(err)
	c.AbortWithStatusJSON(status, gin.H{
		"code":      code,
		"message":   err.Error(),
		"data":      nil,
		"timestamp": time.Now().UnixMilli(),
	})
}
