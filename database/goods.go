package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

const goodsColumns = `id, name, img, detail, price, seckill_price, stock_count, start_time, end_time, status, version, created_at, updated_at`

func scanGoods(row interface{ Scan(...interface{}) error }) (*model.Goods, error) {
	g := model.Goods{}
	err := row.Scan(&g.ID, &g.Name, &g.Img, &g.Detail, &g.Price, &g.SeckillPrice, &g.StockCount,
		&g.StartTime, &g.EndTime, &g.Status, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (d Datasource) CreateGoods(ctx context.Context, g *model.Goods) (*model.Goods, error) {
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO goods (name, img, detail, price, seckill_price, stock_count, start_time, end_time, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
		RETURNING id
	`, g.Name, g.Img, g.Detail, g.Price, g.SeckillPrice, g.StockCount, g.StartTime, g.EndTime, g.Status, g.CreatedAt, g.UpdatedAt).Scan(&g.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.New(apierror.CodeBadRequest, "item already exists", err.Error())
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to create item", err.Error())
	}

	return g, nil
}

func (d Datasource) GetGoodsByID(ctx context.Context, id int64) (*model.Goods, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+goodsColumns+`
		FROM goods
		WHERE id = $1
	`, id)

	g, err := scanGoods(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewFromCode(apierror.CodeGoodsNotExist)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve item", err.Error())
	}
	return g, nil
}

func (d Datasource) GetAllGoods(ctx context.Context, filter model.GoodsFilter) ([]model.Goods, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	if filter.Status != nil {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+goodsColumns+`
			FROM goods
			WHERE status = $1
			ORDER BY start_time
			LIMIT $2 OFFSET $3
		`, *filter.Status, limit, filter.Offset)
	} else {
		rows, err = d.Conn.QueryContext(ctx, `
			SELECT `+goodsColumns+`
			FROM goods
			ORDER BY start_time
			LIMIT $1 OFFSET $2
		`, limit, filter.Offset)
	}
	if err != nil {
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve items", err.Error())
	}
	defer rows.Close()

	goods := []model.Goods{}
	for rows.Next() {
		g, err := scanGoods(rows)
		if err != nil {
			return nil, apierror.New(apierror.CodeSystemError, "failed to scan item data", err.Error())
		}
		goods = append(goods, *g)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.New(apierror.CodeSystemError, "error iterating over items", err.Error())
	}
	return goods, nil
}

// DeductStockOptimistic decrements durable stock only when the stock is
// sufficient and the row still carries the version the caller read. A
// false return means another writer got there first; the caller decides
// whether to re-read and retry.
func (d Datasource) DeductStockOptimistic(ctx context.Context, goodsID int64, count, version int) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE goods
		SET stock_count = stock_count - $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND stock_count >= $2 AND version = $3
	`, goodsID, count, version)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to deduct stock", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to deduct stock", err.Error())
	}
	return n == 1, nil
}

// DeductStockDirect decrements durable stock guarded only by the
// sufficiency predicate. Used by the order materializer, where the fast
// store already serialized admission.
func (d Datasource) DeductStockDirect(ctx context.Context, goodsID int64, count int) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE goods
		SET stock_count = stock_count - $2, updated_at = NOW()
		WHERE id = $1 AND stock_count >= $2
	`, goodsID, count)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to deduct stock", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to deduct stock", err.Error())
	}
	return n == 1, nil
}

// RollbackStock returns count units unconditionally.
func (d Datasource) RollbackStock(ctx context.Context, goodsID int64, count int) error {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE goods
		SET stock_count = stock_count + $2, updated_at = NOW()
		WHERE id = $1
	`, goodsID, count)
	if err != nil {
		return apierror.New(apierror.CodeSystemError, "failed to roll back stock", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apierror.New(apierror.CodeSystemError, "failed to roll back stock", err.Error())
	}
	if n == 0 {
		return apierror.NewFromCode(apierror.CodeGoodsNotExist)
	}
	return nil
}

func (d Datasource) UpdateGoodsStatus(ctx context.Context, goodsID int64, status model.GoodsStatus) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE goods
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, goodsID, status)
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to update item status", err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.New(apierror.CodeSystemError, "failed to update item status", err.Error())
	}
	return n == 1, nil
}
