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

	"github.com/gin-gonic/gin"

	"github.com/surgekit/surge/api/middleware"
	apimodel "github.com/surgekit/surge/api/model"
	"github.com/surgekit/surge/internal/apierror"
)

func (a Api) Register(c *gin.Context) {
	var req apimodel.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateRegisterRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	user, err := a.surge.Register(c.Request.Context(), req.Username, req.Password, req.Phone)
	respond(c, user, err)
}

func (a Api) Login(c *gin.Context) {
	var req apimodel.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateLoginRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	user, signed, err := a.surge.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, gin.H{"user": user, "token": signed}, nil)
}

func (a Api) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}
	respond(c, nil, a.surge.Logout(c.Request.Context(), userID))
}

func (a Api) GetUser(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond(c, nil, apierror.NewFromCode(apierror.CodeUnauthorized))
		return
	}

	user, err := a.surge.GetUser(c.Request.Context(), userID)
	respond(c, user, err)
}
