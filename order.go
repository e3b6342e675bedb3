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
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

// MaterializeOrder turns an admitted reservation into a durable order
// row. It is the consumer of the reservation topic and must stay
// idempotent: the broker redelivers on any returned error, and the
// duplicate insert is absorbed by the order-number uniqueness and the
// active-order check.
func (s *Surge) MaterializeOrder(ctx context.Context, msg *model.SeckillMessage) error {
	ctx, span := tracer.Start(ctx, "Materialize Order")
	defer span.End()

	exists, err := s.datasource.HasActiveOrder(ctx, msg.UserID, msg.GoodsID)
	if err != nil {
		return err
	}
	if exists {
		logrus.Infof("order already materialized - orderNo: %d", msg.OrderNo)
		return nil
	}

	// The message carries the snapshot taken at admission; the row is
	// priced from it, not from the current goods row.
	order := &model.Order{
		OrderNo:     msg.OrderNo,
		UserID:      msg.UserID,
		GoodsID:     msg.GoodsID,
		GoodsName:   msg.GoodsName,
		GoodsImg:    msg.GoodsImg,
		GoodsPrice:  msg.SeckillPrice,
		GoodsCount:  msg.Count,
		TotalAmount: msg.SeckillPrice.Mul(decimal.NewFromInt(int64(msg.Count))),
		Channel:     msg.Channel,
		Status:      model.OrderStatusAwaitingPayment,
	}
	if _, err := s.datasource.RecordOrder(ctx, order); err != nil {
		if apierror.Is(err, apierror.CodeRepeatOrder) {
			// A previous delivery already inserted this order.
			return nil
		}
		return err
	}

	// Bring the durable stock in line with the fast store. On failure
	// the decrement is replayed by the compensation scheduler; the
	// order itself stands.
	if err := s.SyncStockDeduct(ctx, msg.GoodsID, msg.Count); err != nil {
		logrus.Errorf("durable stock sync failed - orderNo: %d, goodsId: %d: %v", msg.OrderNo, msg.GoodsID, err)
		s.compensator.EnqueueKind(ctx, model.TaskStockSync, model.StockSyncPayload{
			OrderNo: msg.OrderNo,
			GoodsID: msg.GoodsID,
			Count:   msg.Count,
		})
	}

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	window := time.Duration(cfg.Order.PaymentWindowMinutes) * time.Minute
	timeoutMsg := &model.OrderTimeoutMessage{
		OrderNo:   msg.OrderNo,
		UserID:    msg.UserID,
		GoodsID:   msg.GoodsID,
		Count:     msg.Count,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.enqueueTimeout(ctx, timeoutMsg, window); err != nil {
		// Redelivery re-publishes the timeout; the insert above is
		// absorbed by the idempotence checks.
		return err
	}

	logrus.Infof("order materialized - orderNo: %d, total: %s", msg.OrderNo, order.TotalAmount.StringFixed(2))
	return nil
}

// HandleOrderTimeout closes an order whose payment window elapsed. If
// the order was paid or cancelled in the meantime the message is
// acknowledged without effect.
func (s *Surge) HandleOrderTimeout(ctx context.Context, msg *model.OrderTimeoutMessage) error {
	order, err := s.datasource.GetOrderByOrderNo(ctx, msg.OrderNo)
	if err != nil {
		if apierror.Is(err, apierror.CodeOrderNotExist) {
			logrus.Warnf("timeout for unknown order - orderNo: %d", msg.OrderNo)
			return nil
		}
		return err
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		return nil
	}

	moved, err := s.datasource.UpdateOrderStatus(ctx, msg.OrderNo, model.OrderStatusAwaitingPayment, model.OrderStatusExpired)
	if err != nil {
		return err
	}
	if !moved {
		// Paid in the race between the read above and the update.
		return nil
	}
	logrus.Infof("order expired - orderNo: %d", msg.OrderNo)

	s.releaseReservation(ctx, order.GoodsID, order.UserID, order.GoodsCount)
	return nil
}

// releaseReservation gives the unit back after a cancel or expiry:
// stock to both stores, claim mark cleared. Failures are converted to
// compensation tasks rather than propagated, the status transition has
// already committed.
func (s *Surge) releaseReservation(ctx context.Context, goodsID, userID int64, count int) {
	if err := s.RollbackStockEverywhere(ctx, goodsID, count); err != nil {
		logrus.Errorf("stock rollback failed - goodsId: %d: %v", goodsID, err)
		s.compensator.EnqueueKind(ctx, model.TaskStockRollback, model.StockRollbackPayload{GoodsID: goodsID, Count: count})
	}
	if err := s.stock.ClearClaim(ctx, goodsID, userID); err != nil {
		logrus.Errorf("claim clear failed - goodsId: %d, userId: %d: %v", goodsID, userID, err)
		s.compensator.EnqueueKind(ctx, model.TaskKilledMarkRemove, model.KilledMarkRemovePayload{GoodsID: goodsID, UserID: userID})
	}
}

// PayOrder moves the caller's order from AWAITING_PAYMENT to PAID.
func (s *Surge) PayOrder(ctx context.Context, userID, orderNo int64) (*model.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	if err := rejectByStatus(order.Status); err != nil {
		return nil, err
	}

	paidAt := time.Now()
	moved, err := s.datasource.MarkOrderPaid(ctx, orderNo, paidAt)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race with the timeout or a concurrent pay.
		fresh, err := s.datasource.GetOrderByOrderNo(ctx, orderNo)
		if err != nil {
			return nil, err
		}
		return nil, rejectByStatus(fresh.Status)
	}

	order.Status = model.OrderStatusPaid
	order.PayTime = &paidAt
	logrus.Infof("order paid - orderNo: %d, userId: %d", orderNo, userID)
	return order, nil
}

// CancelOrder voids an unpaid order and releases its reservation.
func (s *Surge) CancelOrder(ctx context.Context, userID, orderNo int64) (*model.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	if err := rejectByStatus(order.Status); err != nil {
		return nil, err
	}

	moved, err := s.datasource.UpdateOrderStatus(ctx, orderNo, model.OrderStatusAwaitingPayment, model.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !moved {
		fresh, err := s.datasource.GetOrderByOrderNo(ctx, orderNo)
		if err != nil {
			return nil, err
		}
		return nil, rejectByStatus(fresh.Status)
	}

	s.releaseReservation(ctx, order.GoodsID, order.UserID, order.GoodsCount)

	order.Status = model.OrderStatusCancelled
	logrus.Infof("order cancelled - orderNo: %d, userId: %d", orderNo, userID)
	return order, nil
}

// ShipOrder moves a paid order to SHIPPED.
func (s *Surge) ShipOrder(ctx context.Context, orderNo int64) (*model.Order, error) {
	return s.transitionOrder(ctx, orderNo, model.OrderStatusPaid, model.OrderStatusShipped)
}

// ReceiveOrder confirms delivery of a shipped order.
func (s *Surge) ReceiveOrder(ctx context.Context, orderNo int64) (*model.Order, error) {
	return s.transitionOrder(ctx, orderNo, model.OrderStatusShipped, model.OrderStatusReceived)
}

func (s *Surge) transitionOrder(ctx context.Context, orderNo int64, from, to model.OrderStatus) (*model.Order, error) {
	moved, err := s.datasource.UpdateOrderStatus(ctx, orderNo, from, to)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apierror.NewFromCode(apierror.CodeOrderStateError)
	}
	order, err := s.datasource.GetOrderByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	logrus.Infof("order %s - orderNo: %d", to, orderNo)
	return order, nil
}

// GetOrder returns the caller's order by its number.
func (s *Surge) GetOrder(ctx context.Context, userID, orderNo int64) (*model.Order, error) {
	return s.ownedOrder(ctx, userID, orderNo)
}

// GetOrderByID returns the caller's order by row id.
func (s *Surge) GetOrderByID(ctx context.Context, userID, id int64) (*model.Order, error) {
	order, err := s.datasource.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apierror.NewFromCode(apierror.CodeOrderNotExist)
	}
	return order, nil
}

// ListOrders lists the caller's orders, newest first.
func (s *Surge) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	return s.datasource.GetOrdersByUser(ctx, filter)
}

// HasOrder reports whether the user holds an active order on the item.
// While the reservation is still in the queue the durable row does not
// exist yet, so the claim mark is consulted as well.
func (s *Surge) HasOrder(ctx context.Context, userID, goodsID int64) (bool, error) {
	exists, err := s.datasource.HasActiveOrder(ctx, userID, goodsID)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	return s.stock.HasClaim(ctx, goodsID, userID)
}

// ownedOrder loads an order and hides it from anyone but its owner.
func (s *Surge) ownedOrder(ctx context.Context, userID, orderNo int64) (*model.Order, error) {
	order, err := s.datasource.GetOrderByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apierror.NewFromCode(apierror.CodeOrderNotExist)
	}
	return order, nil
}

// rejectByStatus maps a non-payable order status to its business code.
func rejectByStatus(status model.OrderStatus) error {
	switch status {
	case model.OrderStatusAwaitingPayment:
		return nil
	case model.OrderStatusPaid, model.OrderStatusShipped, model.OrderStatusReceived:
		return apierror.NewFromCode(apierror.CodeOrderAlreadyPaid)
	case model.OrderStatusCancelled:
		return apierror.NewFromCode(apierror.CodeOrderCancelled)
	case model.OrderStatusExpired:
		return apierror.NewFromCode(apierror.CodeOrderTimeout)
	}
	return apierror.NewFromCode(apierror.CodeOrderStateError)
}
