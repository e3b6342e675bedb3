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

package surge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/database"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/internal/rediskey"
	"github.com/surgekit/surge/model"
)

// newTestSurge builds a Surge against miniredis and a sqlmock-backed
// datasource, with broker publishes stubbed out.
func newTestSurge(t *testing.T) (*Surge, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Jwt:   config.JwtConfig{Secret: "test-secret"},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSurge(&database.Datasource{Conn: db})
	require.NoError(t, err)

	s.enqueueReservation = func(ctx context.Context, msg *model.SeckillMessage) error { return nil }
	s.enqueueTimeout = func(ctx context.Context, msg *model.OrderTimeoutMessage, window time.Duration) error { return nil }
	return s, mock, mr
}

func expectGoodsRow(mock sqlmock.Sqlmock, goodsID int64, stock int) {
	expectGoodsRowWithStatus(mock, goodsID, stock, model.GoodsStatusOngoing)
}

func expectGoodsRowWithStatus(mock sqlmock.Sqlmock, goodsID int64, stock int, status model.GoodsStatus) {
	now := time.Now()
	mock.ExpectQuery("FROM goods").
		WithArgs(goodsID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "img", "detail", "price", "seckill_price", "stock_count",
			"start_time", "end_time", "status", "version", "created_at", "updated_at",
		}).AddRow(goodsID, "limited sneaker", "/img/1.png", "detail", "999.00", "499.00", stock,
			now.Add(-time.Hour), now.Add(time.Hour), status, 0, now, now))
}

func TestReserveSuccess(t *testing.T) {
	s, mock, mr := newTestSurge(t)
	ctx := context.Background()

	require.NoError(t, s.stock.InitStock(ctx, 1, 10))
	expectGoodsRow(mock, 1, 10)

	orderNo, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1, Count: 1, Channel: "IOS"})
	require.NoError(t, err)
	assert.Greater(t, orderNo, int64(0))

	// One unit gone, claim mark set, lock released.
	stock, ok, err := s.stock.GetStock(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), stock)

	claimed, err := s.stock.HasClaim(ctx, 1, 1000)
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.False(t, mr.Exists(rediskey.ReserveLock(1, 1000)))
}

func TestReserveDuplicateClaim(t *testing.T) {
	s, mock, _ := newTestSurge(t)
	ctx := context.Background()

	require.NoError(t, s.stock.InitStock(ctx, 1, 10))
	expectGoodsRow(mock, 1, 10)

	_, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1})
	require.NoError(t, err)

	// Second attempt bounces on the claim mark without touching stock.
	_, err = s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1})
	require.Error(t, err)
	assert.Equal(t, apierror.CodeRepeatOrder, apierror.CodeOf(err))

	stock, _, err := s.stock.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stock)
}

func TestReserveOutOfStock(t *testing.T) {
	s, mock, _ := newTestSurge(t)
	ctx := context.Background()

	require.NoError(t, s.stock.InitStock(ctx, 1, 0))
	expectGoodsRow(mock, 1, 0)

	_, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1})
	require.Error(t, err)
	assert.Equal(t, apierror.CodeStockNotEnough, apierror.CodeOf(err))
}

func TestReserveHydratesUnseededStock(t *testing.T) {
	s, mock, _ := newTestSurge(t)
	ctx := context.Background()

	// Catalog read plus the hydration re-read inside the deduct loop.
	expectGoodsRow(mock, 1, 5)
	expectGoodsRow(mock, 1, 5)

	orderNo, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1})
	require.NoError(t, err)
	assert.Greater(t, orderNo, int64(0))

	stock, ok, err := s.stock.GetStock(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), stock)
}

func TestReserveWindowEdges(t *testing.T) {
	s, mock, _ := newTestSurge(t)
	ctx := context.Background()

	require.NoError(t, s.stock.InitStock(ctx, 2, 10))

	// Sale starting one hour from now: not started.
	now := time.Now()
	mock.ExpectQuery("FROM goods").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "img", "detail", "price", "seckill_price", "stock_count",
			"start_time", "end_time", "status", "version", "created_at", "updated_at",
		}).AddRow(int64(2), "sneaker", "", "", "999.00", "499.00", 10,
			now.Add(time.Hour), now.Add(2*time.Hour), model.GoodsStatusOngoing, 0, now, now))

	_, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 2})
	assert.Equal(t, apierror.CodeActivityNotStarted, apierror.CodeOf(err))

	// Sale already over: ended.
	require.NoError(t, s.stock.InitStock(ctx, 3, 10))
	mock.ExpectQuery("FROM goods").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "img", "detail", "price", "seckill_price", "stock_count",
			"start_time", "end_time", "status", "version", "created_at", "updated_at",
		}).AddRow(int64(3), "sneaker", "", "", "999.00", "499.00", 10,
			now.Add(-2*time.Hour), now.Add(-time.Hour), model.GoodsStatusOngoing, 0, now, now))

	_, err = s.Reserve(ctx, ReserveRequest{UserID: 1001, GoodsID: 3})
	assert.Equal(t, apierror.CodeActivityEnded, apierror.CodeOf(err))
}

func TestReserveBrokerOutageRollsBack(t *testing.T) {
	s, mock, mr := newTestSurge(t)
	ctx := context.Background()

	require.NoError(t, s.stock.InitStock(ctx, 1, 10))
	expectGoodsRow(mock, 1, 10)

	s.enqueueReservation = func(ctx context.Context, msg *model.SeckillMessage) error {
		return assert.AnError
	}

	_, err := s.Reserve(ctx, ReserveRequest{UserID: 1000, GoodsID: 1})
	require.Error(t, err)
	assert.Equal(t, apierror.CodeSystemError, apierror.CodeOf(err))

	// The deducted unit came back and the claim mark is gone, so the
	// user can retry immediately.
	stock, _, err := s.stock.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)

	claimed, err := s.stock.HasClaim(ctx, 1, 1000)
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.False(t, mr.Exists(rediskey.ReserveLock(1, 1000)))
}

func TestReserveConcurrentNeverOversells(t *testing.T) {
	s, mock, _ := newTestSurge(t)
	ctx := context.Background()

	const stock = 5
	const contenders = 20

	require.NoError(t, s.stock.InitStock(ctx, 1, stock))

	// Warm the catalog cache so the goroutines below never touch the
	// durable store.
	expectGoodsRow(mock, 1, stock)
	_, err := s.GetGoods(ctx, 1)
	require.NoError(t, err)

	var admitted int64
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Reserve(ctx, ReserveRequest{UserID: int64(2000 + i), GoodsID: 1, Count: 1})
			if err == nil {
				atomic.AddInt64(&admitted, 1)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, stock, admitted)
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, apierror.CodeStockNotEnough, apierror.CodeOf(err))
		}
	}

	remaining, ok, err := s.stock.GetStock(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0, remaining)
}

func TestReserveGoodsNotFound(t *testing.T) {
	s, mock, _ := newTestSurge(t)

	mock.ExpectQuery("FROM goods").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Reserve(context.Background(), ReserveRequest{UserID: 1000, GoodsID: 404})
	require.Error(t, err)
	assert.Equal(t, apierror.CodeGoodsNotExist, apierror.CodeOf(err))
}
