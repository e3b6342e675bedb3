package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

const orderColumns = `id, order_no, user_id, goods_id, goods_name, goods_img, goods_price, goods_count, total_amount, channel, status, created_at, pay_time, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*model.Order, error) {
	o := model.Order{}
	var payTime sql.NullTime
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.GoodsID, &o.GoodsName, &o.GoodsImg,
		&o.GoodsPrice, &o.GoodsCount, &o.TotalAmount, &o.Channel, &o.Status,
		&o.CreatedAt, &payTime, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if payTime.Valid {
		o.PayTime = &payTime.Time
	}
	return &o, nil
}

// RecordOrder inserts the materialized order. Timestamps are set here,
// not by column defaults, so replayed inserts carry the original clock.
func (d Datasource) RecordOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = time.Now()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO orders (order_no, user_id, goods_id, goods_name, goods_img, goods_price, goods_count, total_amount, channel, status, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0)
		RETURNING id
	`, o.OrderNo, o.UserID, o.GoodsID, o.GoodsName, o.GoodsImg, o.GoodsPrice, o.GoodsCount,
		o.TotalAmount, o.Channel, o.Status, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewFromCode(apierror.CodeRepeatOrder)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to record order", err.Error())
	}

	return o, nil
}

func (d Datasource) GetOrderByOrderNo(ctx context.Context, orderNo int64) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_no = $1 AND deleted = 0
	`, orderNo)

	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewFromCode(apierror.CodeOrderNotExist)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve order", err.Error())
	}
	return o, nil
}

func (d Datasource) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted = 0
	`, id)

	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewFromCode(apierror.CodeOrderNotExist)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve order", err.Error())
	}
	return o, nil
}

func (d Datasource) GetOrdersByUser(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	if filter.Status != nil {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE user_id = $1 AND status = $2 AND deleted = 0
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4
		`, filter.UserID, *filter.Status, limit, filter.Offset)
	} else {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE user_id = $1 AND deleted = 0
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, filter.UserID, limit, filter.Offset)
	}
	if err != nil {
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve orders", err.Error())
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apierror.New(apierror.CodeSystemError, "failed to scan order data", err.Error())
		}
		orders = append(orders, *o)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.New(apierror.CodeSystemError, "error iterating over orders", err.Error())
	}
	return orders, nil
}

// HasActiveOrder reports whether the user already holds a non-terminal
// order on the item. Cancelled and expired orders free the pair for
// another attempt.
func (d Datasource) HasActiveOrder(ctx context.Context, userID, goodsID int64) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE user_id = $1 AND goods_id = $2 AND deleted = 0
			  AND status IN ($3, $4, $5)
		)
	`, userID, goodsID, model.OrderStatusAwaitingPayment, model.OrderStatusPaid, model.OrderStatusShipped).Scan(&exists)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to check for existing order", err.Error())
	}
	return exists, nil
}

// UpdateOrderStatus moves the order from one status to another with a
// compare-and-set predicate. A false return means the order was not in
// the expected source state.
func (d Datasource) UpdateOrderStatus(ctx context.Context, orderNo int64, from, to model.OrderStatus) (bool, error) {
	if !model.CanTransition(from, to) {
		return false, apierror.NewFromCode(apierror.CodeOrderStateError)
	}

	res, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE order_no = $1 AND status = $2 AND deleted = 0
	`, orderNo, from, to)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to update order status", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to update order status", err.Error())
	}
	return n == 1, nil
}

// MarkOrderPaid is the payment transition; it also stamps the pay time.
func (d Datasource) MarkOrderPaid(ctx context.Context, orderNo int64, paidAt time.Time) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, pay_time = $2, updated_at = NOW()
		WHERE order_no = $1 AND status = $4 AND deleted = 0
	`, orderNo, paidAt, model.OrderStatusPaid, model.OrderStatusAwaitingPayment)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to mark order paid", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to mark order paid", err.Error())
	}
	return n == 1, nil
}
