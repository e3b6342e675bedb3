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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/internal/apierror"
	redlock "github.com/surgekit/surge/internal/lock"
	"github.com/surgekit/surge/internal/rediskey"
	"github.com/surgekit/surge/internal/stockcache"
	"github.com/surgekit/surge/model"
)

// ReserveRequest is one admission attempt against a flash-sale item.
type ReserveRequest struct {
	UserID  int64
	GoodsID int64
	Count   int
	Channel string
}

// Reserve runs the full admission pipeline and returns the order number
// the caller can poll for. The durable order does not exist yet when
// Reserve returns; the queue consumer materializes it.
//
// Every fast-store side effect taken before a failure is undone in
// reverse order on the way out. An undo that itself fails is handed to
// the compensation scheduler, so stock is never silently lost.
func (s *Surge) Reserve(ctx context.Context, req ReserveRequest) (orderNo int64, err error) {
	ctx, span := tracer.Start(ctx, "Reserve")
	defer span.End()

	count := req.Count
	if count <= 0 {
		count = 1
	}
	channel := model.ParseChannel(req.Channel)

	// Per user-per-item mutex. A second click while the first request
	// is in flight bounces here.
	locker := redlock.NewLocker(s.redis, rediskey.ReserveLock(req.GoodsID, req.UserID), uuid.New().String())
	if err := locker.Lock(ctx, rediskey.LockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return 0, apierror.NewFromCode(apierror.CodeRepeatOrder)
		}
		return 0, err
	}
	defer func() {
		if unlockErr := locker.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			logrus.Warnf("failed to release reserve lock - goodsId: %d, userId: %d: %v", req.GoodsID, req.UserID, unlockErr)
		}
	}()

	// One unit per user per item, across the whole sale.
	claimed, err := s.stock.HasClaim(ctx, req.GoodsID, req.UserID)
	if err != nil {
		return 0, err
	}
	if claimed {
		return 0, apierror.NewFromCode(apierror.CodeRepeatOrder)
	}

	goods, err := s.GetGoods(ctx, req.GoodsID)
	if err != nil {
		return 0, err
	}
	if err := goods.CheckAdmissible(time.Now()); err != nil {
		return 0, err
	}

	// Undo stack for fast-store effects, run in reverse on failure.
	var cleanups []func()
	defer func() {
		if err != nil {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	if err = s.deductCachedStock(ctx, goods, count); err != nil {
		return 0, err
	}
	cleanups = append(cleanups, func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if _, rbErr := s.stock.RollbackStock(cleanupCtx, req.GoodsID, count); rbErr != nil {
			logrus.Errorf("stock rollback failed during reserve cleanup - goodsId: %d: %v", req.GoodsID, rbErr)
			s.compensator.EnqueueKind(cleanupCtx, model.TaskStockRollback, model.StockRollbackPayload{GoodsID: req.GoodsID, Count: count})
		}
	})

	orderNo, err = s.generator.NextID()
	if err != nil {
		return 0, apierror.New(apierror.CodeSystemError, apierror.Message(apierror.CodeSystemError), err.Error())
	}

	if err = s.stock.MarkClaimed(ctx, req.GoodsID, req.UserID); err != nil {
		return 0, err
	}
	cleanups = append(cleanups, func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if clErr := s.stock.ClearClaim(cleanupCtx, req.GoodsID, req.UserID); clErr != nil {
			logrus.Errorf("claim clear failed during reserve cleanup - goodsId: %d, userId: %d: %v", req.GoodsID, req.UserID, clErr)
			s.compensator.EnqueueKind(cleanupCtx, model.TaskKilledMarkRemove, model.KilledMarkRemovePayload{GoodsID: req.GoodsID, UserID: req.UserID})
		}
	})

	msg := &model.SeckillMessage{
		OrderNo:      orderNo,
		UserID:       req.UserID,
		GoodsID:      req.GoodsID,
		GoodsName:    goods.Name,
		GoodsImg:     goods.Img,
		SeckillPrice: goods.SeckillPrice,
		Count:        count,
		Channel:      channel,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err = s.enqueueReservation(ctx, msg); err != nil {
		logrus.Errorf("failed to enqueue reservation - orderNo: %d: %v", orderNo, err)
		return 0, apierror.NewFromCode(apierror.CodeSystemError)
	}

	logrus.Infof("reservation admitted - orderNo: %d, userId: %d, goodsId: %d, count: %d", orderNo, req.UserID, req.GoodsID, count)
	return orderNo, nil
}

// deductCachedStock decrements the fast stock counter, hydrating it
// from the durable store once if the key has not been seeded or has
// expired.
func (s *Surge) deductCachedStock(ctx context.Context, goods *model.Goods, count int) error {
	for attempt := 0; attempt < 2; attempt++ {
		remaining, err := s.stock.DeductStock(ctx, goods.ID, count)
		if err != nil {
			return err
		}
		switch remaining {
		case stockcache.DeductOutOfStock:
			return apierror.NewFromCode(apierror.CodeStockNotEnough)
		case stockcache.DeductUninitialized:
			fresh, err := s.datasource.GetGoodsByID(ctx, goods.ID)
			if err != nil {
				return err
			}
			if err := s.stock.InitStock(ctx, goods.ID, fresh.StockCount); err != nil {
				return err
			}
			continue
		}
		return nil
	}
	return apierror.NewFromCode(apierror.CodeStockNotEnough)
}

// HasKilled reports whether the user already claimed a unit of the item.
func (s *Surge) HasKilled(ctx context.Context, userID, goodsID int64) (bool, error) {
	return s.stock.HasClaim(ctx, goodsID, userID)
}

// CheckReservation reports the outcome of an earlier admission attempt.
// A positive result is the order number of the materialized order, 0
// means the reservation is still in flight, -1 means the user holds no
// reservation on the item.
func (s *Surge) CheckReservation(ctx context.Context, userID, goodsID int64) (int64, error) {
	orders, err := s.datasource.GetOrdersByUser(ctx, model.OrderFilter{UserID: userID, Limit: 50})
	if err != nil {
		return -1, err
	}
	for i := range orders {
		if orders[i].GoodsID == goodsID && !orders[i].Status.IsTerminal() {
			return orders[i].OrderNo, nil
		}
	}

	claimed, err := s.stock.HasClaim(ctx, goodsID, userID)
	if err != nil {
		return -1, err
	}
	if claimed {
		// Admitted, order still materializing.
		return 0, nil
	}
	return -1, nil
}

// CheckOrder resolves an order number against the durable store first
// and the reservation queue second, so callers polling right after
// admission see "processing" instead of "not found".
func (s *Surge) CheckOrder(ctx context.Context, userID, orderNo int64) (*model.Order, bool, error) {
	order, err := s.datasource.GetOrderByOrderNo(ctx, orderNo)
	if err == nil {
		if order.UserID != userID {
			return nil, false, apierror.NewFromCode(apierror.CodeOrderNotExist)
		}
		return order, false, nil
	}
	if !apierror.Is(err, apierror.CodeOrderNotExist) {
		return nil, false, err
	}

	msg, qerr := s.queue.GetReservationFromQueue(orderNo)
	if qerr != nil {
		return nil, false, qerr
	}
	if msg != nil && msg.UserID == userID {
		return nil, true, nil
	}
	return nil, false, err
}
