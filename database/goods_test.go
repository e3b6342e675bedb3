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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

func goodsRow(id int64, stock, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "img", "detail", "price", "seckill_price", "stock_count",
		"start_time", "end_time", "status", "version", "created_at", "updated_at",
	}).AddRow(id, "limited sneaker", "/img/1.png", "detail", "999.00", "499.00", stock,
		now.Add(-time.Hour), now.Add(time.Hour), model.GoodsStatusOngoing, version, now, now)
}

func TestGetGoodsByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM goods").
		WithArgs(int64(1)).
		WillReturnRows(goodsRow(1, 100, 3))

	g, err := ds.GetGoodsByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.ID)
	assert.Equal(t, 100, g.StockCount)
	assert.Equal(t, 3, g.Version)
	assert.Equal(t, "499.00", g.SeckillPrice.StringFixed(2))
}

func TestGetGoodsByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM goods").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = ds.GetGoodsByID(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeGoodsNotExist, apierror.CodeOf(err))
}

func TestDeductStockOptimistic(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(1), 2, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := ds.DeductStockOptimistic(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeductStockOptimistic_VersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// Stale version matches no row; the decrement must not happen.
	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(1), 2, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := ds.DeductStockOptimistic(context.Background(), 1, 2, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeductStockDirect_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(1), 500).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := ds.DeductStockDirect(context.Background(), 1, 500)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRollbackStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ds.RollbackStock(context.Background(), 1, 2))
}

func TestRollbackStock_MissingItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE goods").
		WithArgs(int64(404), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.RollbackStock(context.Background(), 404, 2)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeGoodsNotExist, apierror.CodeOf(err))
}
