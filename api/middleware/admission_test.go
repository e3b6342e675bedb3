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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func hit(r *gin.Engine, route string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", route, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBreachReturnsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/do", RateLimit(1, 0), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	first := hit(r, "/do")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotContains(t, first.Body.String(), "1201")

	// The budget is one request per second; the immediate retry is shed
	// with the business code, not a transport error.
	second := hit(r, "/do")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "1201")
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/do", RateLimit(0, 0), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	for i := 0; i < 20; i++ {
		assert.NotContains(t, hit(r, "/do").Body.String(), "1201")
	}
}

func TestPerGoodsLimitIsolatesItems(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	key := func(c *gin.Context) string { return c.Query("goodsId") }
	r.POST("/do", PerGoodsLimit(1, key), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	assert.NotContains(t, hit(r, "/do?goodsId=1").Body.String(), "1202")
	// The hot item is shed while a different item still gets through.
	assert.Contains(t, hit(r, "/do?goodsId=1").Body.String(), "1202")
	assert.NotContains(t, hit(r, "/do?goodsId=2").Body.String(), "1202")
}

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/do", Breaker("test"), func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{})
	})

	for i := 0; i < 10; i++ {
		rec := hit(r, "/do")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, "request %d", i)
	}

	// Ten straight failures trip the circuit; the next request fails
	// fast without reaching the handler.
	rec := hit(r, "/do")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1203")
}

func TestBreakerOpensOnSlowCalls(t *testing.T) {
	gin.SetMode(gin.TestMode)

	prev := slowCallThreshold
	slowCallThreshold = time.Millisecond
	t.Cleanup(func() { slowCallThreshold = prev })

	r := gin.New()
	r.POST("/do", Breaker("slow-test"), func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{})
	})

	// Every call succeeds but overruns the latency budget; the slow
	// share alone pushes the trip ratio past its limit.
	for i := 0; i < 10; i++ {
		rec := hit(r, "/do")
		assert.NotContains(t, rec.Body.String(), "1203", "request %d", i)
	}

	rec := hit(r, "/do")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1203")
}
