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

// Package stockcache wraps the fast store with the scripted primitives
// the reservation pipeline relies on. Each primitive is one Lua script,
// so there is no observable intermediate state: the stored stock value
// can never go negative, and a rollback on a missing key is rejected
// instead of resurrecting it.
package stockcache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/internal/rediskey"
)

// Sentinel results of DeductStock and RollbackStock.
const (
	// DeductOutOfStock means the stored value is smaller than the
	// requested count.
	DeductOutOfStock = -1
	// DeductUninitialized means the stock key does not exist yet; the
	// caller should hydrate from the durable store and retry once.
	DeductUninitialized = -2
	// RollbackUninitialized means the stock key vanished (TTL expiry);
	// incrementing it would fabricate stock, so the script refuses.
	RollbackUninitialized = -1
)

var deductScript = redis.NewScript(`
local stock = redis.call('get', KEYS[1])
if stock == false then return -2 end
local stockNum = tonumber(stock)
local count = tonumber(ARGV[1])
if stockNum < count then return -1 end
local newStock = stockNum - count
redis.call('set', KEYS[1], newStock)
return newStock`)

var rollbackScript = redis.NewScript(`
local stock = redis.call('get', KEYS[1])
if stock == false then return -1 end
local newStock = tonumber(stock) + tonumber(ARGV[1])
redis.call('set', KEYS[1], newStock)
return newStock`)

// Store exposes the atomic stock and claim-mark primitives.
type Store struct {
	client redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// InitStock seeds the cached counter from the durable stock value.
func (s *Store) InitStock(ctx context.Context, goodsID int64, stock int) error {
	key := rediskey.Stock(goodsID)
	if err := s.client.Set(ctx, key, strconv.Itoa(stock), rediskey.StockTTL).Err(); err != nil {
		return err
	}
	logrus.Infof("initialized stock cache - goodsId: %d, stock: %d", goodsID, stock)
	return nil
}

// DeductStock atomically subtracts n units. It returns the remaining
// stock (>= 0), DeductOutOfStock, or DeductUninitialized.
func (s *Store) DeductStock(ctx context.Context, goodsID int64, n int) (int64, error) {
	result, err := deductScript.Run(ctx, s.client, []string{rediskey.Stock(goodsID)}, n).Int64()
	if err != nil {
		return 0, err
	}
	switch {
	case result >= 0:
		logrus.Debugf("stock deducted - goodsId: %d, count: %d, remaining: %d", goodsID, n, result)
	case result == DeductOutOfStock:
		logrus.Warnf("stock insufficient - goodsId: %d, count: %d", goodsID, n)
	case result == DeductUninitialized:
		logrus.Warnf("stock not initialized - goodsId: %d", goodsID)
	}
	return result, nil
}

// RollbackStock atomically returns n units. It refuses when the key is
// absent and returns RollbackUninitialized.
func (s *Store) RollbackStock(ctx context.Context, goodsID int64, n int) (int64, error) {
	result, err := rollbackScript.Run(ctx, s.client, []string{rediskey.Stock(goodsID)}, n).Int64()
	if err != nil {
		return 0, err
	}
	if result >= 0 {
		logrus.Infof("stock rolled back - goodsId: %d, count: %d, current: %d", goodsID, n, result)
	}
	return result, nil
}

// GetStock reads the cached counter. The second return is false when the
// key does not exist.
func (s *Store) GetStock(ctx context.Context, goodsID int64) (int64, bool, error) {
	val, err := s.client.Get(ctx, rediskey.Stock(goodsID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// DeleteStock drops the cached counter.
func (s *Store) DeleteStock(ctx context.Context, goodsID int64) error {
	return s.client.Del(ctx, rediskey.Stock(goodsID)).Err()
}

// MarkClaimed records that the user holds a claim on the item.
func (s *Store) MarkClaimed(ctx context.Context, goodsID, userID int64) error {
	return s.client.Set(ctx, rediskey.Killed(goodsID, userID), "1", rediskey.KilledTTL).Err()
}

// HasClaim reports whether the user already claimed a unit of the item.
func (s *Store) HasClaim(ctx context.Context, goodsID, userID int64) (bool, error) {
	n, err := s.client.Exists(ctx, rediskey.Killed(goodsID, userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearClaim removes the claim mark, re-opening the item to the user.
func (s *Store) ClearClaim(ctx context.Context, goodsID, userID int64) error {
	if err := s.client.Del(ctx, rediskey.Killed(goodsID, userID)).Err(); err != nil {
		return err
	}
	logrus.Debugf("claim mark cleared - userId: %d, goodsId: %d", userID, goodsID)
	return nil
}
