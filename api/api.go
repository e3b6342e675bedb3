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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/surgekit/surge"
	"github.com/surgekit/surge/api/middleware"
	apimodel "github.com/surgekit/surge/api/model"
	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/apierror"
)

type Api struct {
	surge  *surge.Surge
	router *gin.Engine
}

// Router registers every route group behind its admission tier.
func (a Api) Router() *gin.Engine {
	router := a.router
	conf, _ := config.Fetch()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, apimodel.OK("ok"))
	})

	router.POST("/user/register", a.Register)
	router.POST("/user/login", a.Login)
	router.POST("/user/logout", a.Logout)
	router.GET("/user/info", a.GetUser)

	catalog := router.Group("/stock", middleware.RateLimit(conf.RateLimit.CatalogQPS, 0))
	{
		catalog.GET("/:goodsId", a.GetCachedStock)
		catalog.GET("/goods/list", a.ListGoods)
		catalog.GET("/goods/:id", a.GetGoods)
		catalog.POST("/goods", a.CreateGoods)

		// Mutations fan out to the durable store, so they carry their
		// own breaker.
		store := catalog.Group("", middleware.Breaker("stock-store"))
		{
			store.POST("/rollback", a.RollbackStock)
			store.POST("/sync/deduct", a.SyncStockDeduct)
			store.POST("/goods/deduct", a.DeductGoodsStock)
			store.POST("/goods/:id/status", a.UpdateGoodsStatus)
			store.GET("/killed-mark/check", a.CheckKilledMark)
			store.POST("/killed-mark/remove", a.RemoveKilledMark)
		}
	}

	seckill := router.Group("/stock/seckill", middleware.Admission(conf, goodsIDKey)...)
	{
		seckill.POST("/do", a.Seckill)
		seckill.POST("/init/:goodsId", a.InitGoodsStock)
		seckill.POST("/init/all", a.InitAllGoodsStock)
		seckill.GET("/check", a.CheckSeckill)
	}

	order := router.Group("/order/order", middleware.RateLimit(conf.RateLimit.OrderQPS, 0))
	{
		order.GET("/list", a.ListOrders)
		order.GET("/:id", a.GetOrderByID)
		order.GET("/no/:orderNo", a.GetOrderByNo)
		order.GET("/check", a.CheckOrder)
		order.POST("/pay/:orderNo", a.PayOrder)
		order.POST("/cancel/:orderNo", a.CancelOrder)
	}

	return router
}

func NewAPI(s *surge.Surge) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(otelgin.Middleware("surge"))
	r.Use(middleware.NewAuthMiddleware(s.Tokens()).Authenticate())

	return &Api{surge: s, router: r}
}

// goodsIDKey peeks the goodsId out of the request body for the hot-item
// limiter, leaving the body readable for the handler.
func goodsIDKey(c *gin.Context) string {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	var probe struct {
		GoodsID int64 `json:"goodsId"`
	}
	if json.Unmarshal(body, &probe) != nil || probe.GoodsID == 0 {
		return ""
	}
	return strconv.FormatInt(probe.GoodsID, 10)
}

// respond writes the uniform envelope, mapping the error to the HTTP
// status it rides on.
func respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), apimodel.Fail(err))
		return
	}
	c.JSON(http.StatusOK, apimodel.OK(data))
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	raw, passed := c.Params.Get(name)
	if !passed {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
