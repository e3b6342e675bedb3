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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/surgekit/surge/api/middleware"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

func (a Api) ListOrders(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}

	filter := model.OrderFilter{UserID: userID}
	if raw := c.Query("status"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			status := model.OrderStatus(v)
			filter.Status = &status
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := a.surge.ListOrders(c.Request.Context(), filter)
	respond(c, orders, err)
}

func (a Api) GetOrderByID(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	id, ok := pathInt64(c, "id")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	order, err := a.surge.GetOrderByID(c.Request.Context(), userID, id)
	respond(c, order, err)
}

func (a Api) GetOrderByNo(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	orderNo, ok := pathInt64(c, "orderNo")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	order, err := a.surge.GetOrder(c.Request.Context(), userID, orderNo)
	respond(c, order, err)
}

// CheckOrder resolves an order number for a caller polling right after
// admission. Pending reservations come back as status "processing".
func (a Api) CheckOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	orderNo, err := strconv.ParseInt(c.Query("orderNo"), 10, 64)
	if err != nil {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	order, pending, err := a.surge.CheckOrder(c.Request.Context(), userID, orderNo)
	if err != nil {
		respond(c, nil, err)
		return
	}
	if pending {
		respond(c, gin.H{"status": "processing"}, nil)
		return
	}
	respond(c, order, nil)
}

func (a Api) PayOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	orderNo, ok := pathInt64(c, "orderNo")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	order, err := a.surge.PayOrder(c.Request.Context(), userID, orderNo)
	respond(c, order, err)
}

func (a Api) CancelOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	orderNo, ok := pathInt64(c, "orderNo")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	order, err := a.surge.CancelOrder(c.Request.Context(), userID, orderNo)
	respond(c, order, err)
}
