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

	apimodel "github.com/surgekit/surge/api/model"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

func (a Api) GetCachedStock(c *gin.Context) {
	goodsID, ok := pathInt64(c, "goodsId")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	stock, err := a.surge.GetCachedStock(c.Request.Context(), goodsID)
	respond(c, stock, err)
}

func (a Api) ListGoods(c *gin.Context) {
	filter := model.GoodsFilter{}
	if raw := c.Query("status"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			status := model.GoodsStatus(v)
			filter.Status = &status
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	goods, err := a.surge.ListGoods(c.Request.Context(), filter)
	respond(c, goods, err)
}

func (a Api) GetGoods(c *gin.Context) {
	goodsID, ok := pathInt64(c, "id")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	goods, err := a.surge.GetGoods(c.Request.Context(), goodsID)
	respond(c, goods, err)
}

func (a Api) CreateGoods(c *gin.Context) {
	var goods model.Goods
	if err := c.ShouldBindJSON(&goods); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	created, err := a.surge.CreateGoods(c.Request.Context(), &goods)
	respond(c, created, err)
}

// The stock mutation endpoints take their arguments on the query
// string rather than in a body.
func (a Api) RollbackStock(c *gin.Context) {
	goodsID, _ := queryInt64(c, "goodsId")
	count, _ := queryInt64(c, "count")

	req := apimodel.StockRollbackRequest{GoodsID: goodsID, Count: int(count)}
	if err := req.ValidateStockRollbackRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := a.surge.RollbackStockEverywhere(c.Request.Context(), req.GoodsID, req.Count)
	respond(c, nil, err)
}

func (a Api) SyncStockDeduct(c *gin.Context) {
	goodsID, _ := queryInt64(c, "goodsId")
	count, _ := queryInt64(c, "count")

	req := apimodel.StockSyncRequest{GoodsID: goodsID, Count: int(count)}
	if err := req.ValidateStockSyncRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := a.surge.SyncStockDeduct(c.Request.Context(), req.GoodsID, req.Count)
	respond(c, nil, err)
}

func (a Api) DeductGoodsStock(c *gin.Context) {
	goodsID, _ := queryInt64(c, "goodsId")
	count, _ := queryInt64(c, "count")

	req := apimodel.StockSyncRequest{GoodsID: goodsID, Count: int(count)}
	if err := req.ValidateStockSyncRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := a.surge.DeductGoodsStock(c.Request.Context(), req.GoodsID, req.Count)
	respond(c, nil, err)
}

func (a Api) RemoveKilledMark(c *gin.Context) {
	goodsID, _ := queryInt64(c, "goodsId")
	userID, _ := queryInt64(c, "userId")

	req := apimodel.KilledMarkRemoveRequest{GoodsID: goodsID, UserID: userID}
	if err := req.ValidateKilledMarkRemoveRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := a.surge.RemoveKilledMark(c.Request.Context(), req.GoodsID, req.UserID)
	respond(c, nil, err)
}

func (a Api) CheckKilledMark(c *gin.Context) {
	goodsID, _ := queryInt64(c, "goodsId")
	userID, _ := queryInt64(c, "userId")

	req := apimodel.KilledMarkRemoveRequest{GoodsID: goodsID, UserID: userID}
	if err := req.ValidateKilledMarkRemoveRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	killed, err := a.surge.HasKilled(c.Request.Context(), req.UserID, req.GoodsID)
	respond(c, killed, err)
}

func (a Api) UpdateGoodsStatus(c *gin.Context) {
	goodsID, ok := pathInt64(c, "id")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}
	status, ok := queryInt64(c, "status")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	err := a.surge.UpdateGoodsStatus(c.Request.Context(), goodsID, model.GoodsStatus(status))
	respond(c, nil, err)
}

func (a Api) InitGoodsStock(c *gin.Context) {
	goodsID, ok := pathInt64(c, "goodsId")
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeBadRequest))
		return
	}

	err := a.surge.InitGoodsStock(c.Request.Context(), goodsID)
	respond(c, nil, err)
}

func (a Api) InitAllGoodsStock(c *gin.Context) {
	n, err := a.surge.InitAllGoodsStock(c.Request.Context())
	respond(c, gin.H{"initialized": n}, err)
}
