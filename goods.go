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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

const goodsCacheTTL = time.Minute

func goodsCacheKey(goodsID int64) string {
	return fmt.Sprintf("goods:%d", goodsID)
}

// GetGoods reads a catalog item through the cache. The cached copy can
// lag the durable row by up to the cache TTL; admission decisions that
// need the exact stock never use this path.
func (s *Surge) GetGoods(ctx context.Context, goodsID int64) (*model.Goods, error) {
	var cached model.Goods
	if err := s.cache.Get(ctx, goodsCacheKey(goodsID), &cached); err == nil && cached.ID == goodsID {
		return &cached, nil
	}

	goods, err := s.datasource.GetGoodsByID(ctx, goodsID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, goodsCacheKey(goodsID), goods, goodsCacheTTL); err != nil {
		logrus.Warnf("failed to cache item %d: %v", goodsID, err)
	}
	return goods, nil
}

// ListGoods lists catalog items straight from the durable store.
func (s *Surge) ListGoods(ctx context.Context, filter model.GoodsFilter) ([]model.Goods, error) {
	return s.datasource.GetAllGoods(ctx, filter)
}

// CreateGoods inserts a catalog item and seeds its fast stock counter.
func (s *Surge) CreateGoods(ctx context.Context, g *model.Goods) (*model.Goods, error) {
	created, err := s.datasource.CreateGoods(ctx, g)
	if err != nil {
		return nil, err
	}
	if err := s.stock.InitStock(ctx, created.ID, created.StockCount); err != nil {
		logrus.Warnf("failed to seed stock cache for new item %d: %v", created.ID, err)
	}
	return created, nil
}

// InitGoodsStock hydrates one item's fast stock counter from the
// durable count.
func (s *Surge) InitGoodsStock(ctx context.Context, goodsID int64) error {
	goods, err := s.datasource.GetGoodsByID(ctx, goodsID)
	if err != nil {
		return err
	}
	return s.stock.InitStock(ctx, goodsID, goods.StockCount)
}

// InitAllGoodsStock hydrates every catalog item's counter. Run at
// startup and before a sale opens.
func (s *Surge) InitAllGoodsStock(ctx context.Context) (int, error) {
	const batch = 200
	initialized := 0
	for offset := 0; ; offset += batch {
		goods, err := s.datasource.GetAllGoods(ctx, model.GoodsFilter{Limit: batch, Offset: offset})
		if err != nil {
			return initialized, err
		}
		for i := range goods {
			if err := s.stock.InitStock(ctx, goods[i].ID, goods[i].StockCount); err != nil {
				return initialized, err
			}
			initialized++
		}
		if len(goods) < batch {
			return initialized, nil
		}
	}
}

// GetCachedStock returns the fast-store stock counter, falling back to
// the durable count when the counter is not seeded.
func (s *Surge) GetCachedStock(ctx context.Context, goodsID int64) (int64, error) {
	stock, ok, err := s.stock.GetStock(ctx, goodsID)
	if err != nil {
		return 0, err
	}
	if ok {
		return stock, nil
	}
	goods, err := s.datasource.GetGoodsByID(ctx, goodsID)
	if err != nil {
		return 0, err
	}
	return int64(goods.StockCount), nil
}

// RollbackStockEverywhere returns count units to both stores. The
// durable increment is retried with exponential backoff; a fast-store
// failure falls through to the compensation scheduler at the caller.
func (s *Surge) RollbackStockEverywhere(ctx context.Context, goodsID int64, count int) error {
	operation := func() error {
		return s.datasource.RollbackStock(ctx, goodsID, count)
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	if _, err := s.stock.RollbackStock(ctx, goodsID, count); err != nil {
		return err
	}
	return nil
}

// RemoveKilledMark clears a user's claim mark so the pair can attempt
// the item again. Operator-facing; the normal release paths clear the
// mark themselves.
func (s *Surge) RemoveKilledMark(ctx context.Context, goodsID, userID int64) error {
	return s.stock.ClearClaim(ctx, goodsID, userID)
}

// SyncStockDeduct applies the durable decrement for an already-admitted
// reservation, bypassing the optimistic version check.
func (s *Surge) SyncStockDeduct(ctx context.Context, goodsID int64, count int) error {
	ok, err := s.datasource.DeductStockDirect(ctx, goodsID, count)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.NewFromCode(apierror.CodeStockNotEnough)
	}
	return nil
}

// DeductGoodsStock decrements the durable count under the row's
// optimistic version. A concurrent writer or an exhausted count both
// surface as stock-not-enough; callers retry at their own cadence.
func (s *Surge) DeductGoodsStock(ctx context.Context, goodsID int64, count int) error {
	goods, err := s.datasource.GetGoodsByID(ctx, goodsID)
	if err != nil {
		return err
	}

	ok, err := s.datasource.DeductStockOptimistic(ctx, goodsID, count, goods.Version)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.NewFromCode(apierror.CodeStockNotEnough)
	}
	return nil
}

// UpdateGoodsStatus moves an item between lifecycle states and drops
// its cache entry so reads see the new state immediately.
func (s *Surge) UpdateGoodsStatus(ctx context.Context, goodsID int64, status model.GoodsStatus) error {
	ok, err := s.datasource.UpdateGoodsStatus(ctx, goodsID, status)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.NewFromCode(apierror.CodeGoodsNotExist)
	}

	if err := s.cache.Delete(ctx, goodsCacheKey(goodsID)); err != nil {
		logrus.Warnf("failed to drop cache entry for item %d: %v", goodsID, err)
	}
	return nil
}
