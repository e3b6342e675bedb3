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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgekit/surge"
	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/database"
	"github.com/surgekit/surge/internal/request"
	"github.com/surgekit/surge/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func setupRouter(t *testing.T) (*gin.Engine, *surge.Surge, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Jwt: config.JwtConfig{
			Secret:    "test-secret",
			Whitelist: []string{"/health", "/user/login", "/user/register"},
		},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := surge.NewSurge(&database.Datasource{Conn: db})
	require.NoError(t, err)

	return NewAPI(s).Router(), s, mock, mr
}

func authHeader(t *testing.T, s *surge.Surge, userID int64) map[string]string {
	t.Helper()
	signed, err := s.Tokens().Generate(userID, "alice")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + signed}
}

func TestHealthIsOpen(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "GET", Route: "/health", Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "GET", Route: "/order/order/list", Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSeckillDo(t *testing.T) {
	router, s, mock, _ := setupRouter(t)
	header := authHeader(t, s, 1000)

	now := time.Now()
	goodsRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "name", "img", "detail", "price", "seckill_price", "stock_count",
			"start_time", "end_time", "status", "version", "created_at", "updated_at",
		}).AddRow(1, "limited sneaker", "/img/1.png", "detail", "999.00", "499.00", 10,
			now.Add(-time.Hour), now.Add(time.Hour), model.GoodsStatusOngoing, 0, now, now)
	}

	// Seed the fast stock counter through the admin route.
	mock.ExpectQuery("FROM goods").WillReturnRows(goodsRow())
	var initResp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/seckill/init/1",
		Payload: bytes.NewBufferString("{}"), Header: header, Response: &initResp,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	// Catalog read inside the admission pipeline.
	mock.ExpectQuery("FROM goods").WillReturnRows(goodsRow())

	body, err := request.ToJsonReq(map[string]interface{}{
		"goodsId": 1, "count": 1, "channel": "IOS",
	})
	require.NoError(t, err)

	var resp envelope
	rec, err = SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/seckill/do",
		Payload: body, Header: header, Response: &resp,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var orderNo string
	require.NoError(t, json.Unmarshal(resp.Data, &orderNo))
	// Snowflake ids overflow float64 mantissas; the envelope carries
	// them as bare decimal strings.
	assert.NotEmpty(t, orderNo)
	assert.NotEqual(t, "0", orderNo)
}

func TestStockRollbackBindsQueryParams(t *testing.T) {
	router, s, mock, mr := setupRouter(t)
	header := authHeader(t, s, 1000)

	require.NoError(t, mr.Set("seckill:stock:1", "3"))
	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/rollback?goodsId=1&count=2",
		Header: header, Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 200, resp.Code)
	mr.CheckGet(t, "seckill:stock:1", "5")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRollbackRejectsMissingParams(t *testing.T) {
	router, s, _, _ := setupRouter(t)
	header := authHeader(t, s, 1000)

	var resp map[string]interface{}
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/rollback?goodsId=1",
		Header: header, Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveKilledMarkBindsQueryParams(t *testing.T) {
	router, s, _, mr := setupRouter(t)
	header := authHeader(t, s, 1000)

	require.NoError(t, mr.Set("seckill:killed:1:1000", "1"))

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/killed-mark/remove?userId=1000&goodsId=1",
		Header: header, Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mr.Exists("seckill:killed:1:1000"))
}

func TestCheckKilledMark(t *testing.T) {
	router, s, _, mr := setupRouter(t)
	header := authHeader(t, s, 1000)

	require.NoError(t, mr.Set("seckill:killed:1:1000", "1"))

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "GET", Route: "/stock/killed-mark/check?userId=1000&goodsId=1",
		Header: header, Response: &resp,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var killed bool
	require.NoError(t, json.Unmarshal(resp.Data, &killed))
	assert.True(t, killed)
}

func TestFailureEnvelopeCarriesNullData(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/order/order/list", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	data, present := raw["data"]
	require.True(t, present)
	assert.Equal(t, "null", string(data))
}

func TestSeckillValidation(t *testing.T) {
	router, s, _, _ := setupRouter(t)
	header := authHeader(t, s, 1000)

	body, err := request.ToJsonReq(map[string]interface{}{"count": 1})
	require.NoError(t, err)

	var resp map[string]interface{}
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/stock/seckill/do",
		Payload: body, Header: header, Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	router, _, mock, _ := setupRouter(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	body, err := request.ToJsonReq(map[string]string{
		"username": "alice", "password": "s3cret1", "phone": "13800000000",
	})
	require.NoError(t, err)

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "POST", Route: "/user/register",
		Payload: body, Response: &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrderByNo(t *testing.T) {
	router, s, mock, _ := setupRouter(t)
	header := authHeader(t, s, 1000)

	now := time.Now()
	mock.ExpectQuery("FROM orders").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_no", "user_id", "goods_id", "goods_name", "goods_img", "goods_price",
			"goods_count", "total_amount", "channel", "status", "created_at", "pay_time", "updated_at",
		}).AddRow(1, 42, 1000, 1, "limited sneaker", "", "499.00", 1, "499.00", 1,
			model.OrderStatusAwaitingPayment, now, nil, now))

	var resp envelope
	rec, err := SetUpTestRequest(TestRequest{
		Router: router, Method: "GET", Route: "/order/order/no/42",
		Header: header, Response: &resp,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var order struct {
		OrderNo string `json:"order_no"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, "42", order.OrderNo)
}
