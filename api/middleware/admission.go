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
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/apierror"
)

// slowCallThreshold is the latency above which a reservation call
// counts against the circuit breaker even when it succeeds. Slow calls
// share the failure counter, so the circuit trips once the combined
// failed-or-slow share of requests passes the 50% ratio rather than on
// an independent slow ratio. A run of slow calls alone therefore still
// opens the circuit.
var slowCallThreshold = 500 * time.Millisecond

// RateLimit caps a route group at qps requests per second. With
// warmUpSec > 0 the budget opens at 10% and ramps linearly to the full
// rate, shielding cold caches from the opening stampede.
func RateLimit(qps float64, warmUpSec int) gin.HandlerFunc {
	if qps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	lmt := tollbooth.NewLimiter(qps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	if warmUpSec > 0 {
		lmt.SetMax(qps / 10)
		go rampUp(lmt, qps, warmUpSec)
	}

	return func(c *gin.Context) {
		if httpError := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpError != nil {
			abortWith(c, http.StatusOK, apierror.NewFromCode(apierror.CodeRateLimited))
			return
		}
		c.Next()
	}
}

// rampUp raises the limiter budget in ten steps across the warm-up
// window.
func rampUp(lmt *limiter.Limiter, qps float64, warmUpSec int) {
	const steps = 10
	interval := time.Duration(warmUpSec) * time.Second / steps
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 2; i <= steps; i++ {
		<-ticker.C
		lmt.SetMax(qps * float64(i) / steps)
	}
}

// PerGoodsLimit throttles one hot item independently of the route
// budget, keyed on the goodsId in the request body or query.
func PerGoodsLimit(qps float64, keyFn func(*gin.Context) string) gin.HandlerFunc {
	if qps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	lmt := tollbooth.NewLimiter(qps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})

	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		if httpError := tollbooth.LimitByKeys(lmt, []string{key}); httpError != nil {
			abortWith(c, http.StatusOK, apierror.NewFromCode(apierror.CodeSystemBusy))
			return
		}
		c.Next()
	}
}

// Breaker fails the route fast while its circuit is open. Requests are
// counted as failures when the handler reports a 5xx, sets an error, or
// runs past the slow-call threshold.
func Breaker(name string) gin.HandlerFunc {
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 10 * time.Second,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("circuit %s moved %s -> %s", name, from, to)
		},
	})

	return func(c *gin.Context) {
		done, err := cb.Allow()
		if err != nil {
			abortWith(c, http.StatusOK, apierror.NewFromCode(apierror.CodeServiceDegraded))
			return
		}

		start := time.Now()
		c.Next()

		ok := c.Writer.Status() < http.StatusInternalServerError &&
			len(c.Errors) == 0 &&
			time.Since(start) < slowCallThreshold
		done(ok)
	}
}

// Admission builds the standard three-tier guard for the reservation
// route group from the loaded configuration.
func Admission(conf *config.Configuration, keyFn func(*gin.Context) string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		RateLimit(conf.RateLimit.ReservationQPS, conf.RateLimit.WarmUpSec),
		PerGoodsLimit(conf.RateLimit.PerGoodsQPS, keyFn),
		Breaker("reservation"),
	}
}
