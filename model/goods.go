package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/surgekit/surge/internal/apierror"
)

// GoodsStatus is the lifecycle state of a flash-sale item.
type GoodsStatus int

const (
	GoodsStatusNotStarted GoodsStatus = 0
	GoodsStatusOngoing    GoodsStatus = 1
	GoodsStatusEnded      GoodsStatus = 2
	GoodsStatusWithdrawn  GoodsStatus = 3
)

type Goods struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Img          string          `json:"img"`
	Detail       string          `json:"detail"`
	Price        decimal.Decimal `json:"price"`
	SeckillPrice decimal.Decimal `json:"seckill_price"`
	StockCount   int             `json:"stock_count"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Status       GoodsStatus     `json:"status"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type GoodsFilter struct {
	Status *GoodsStatus `json:"status"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// CheckAdmissible reports whether a reservation against this item is
// allowed at the given instant. Withdrawal trumps the time window; the
// window is [StartTime, EndTime), so a request at exactly EndTime is
// already outside. The stock check is advisory, the fast store has the
// final word.
func (g *Goods) CheckAdmissible(now time.Time) error {
	if g.Status == GoodsStatusWithdrawn {
		return apierror.NewFromCode(apierror.CodeGoodsOffShelf)
	}
	if now.Before(g.StartTime) {
		return apierror.NewFromCode(apierror.CodeActivityNotStarted)
	}
	if !now.Before(g.EndTime) {
		return apierror.NewFromCode(apierror.CodeActivityEnded)
	}
	if g.StockCount <= 0 {
		return apierror.NewFromCode(apierror.CodeStockNotEnough)
	}
	return nil
}

// EffectiveStatus derives the display status from the time window when
// the stored status has not been moved off ONGOING by an operator.
func (g *Goods) EffectiveStatus(now time.Time) GoodsStatus {
	if g.Status == GoodsStatusWithdrawn {
		return GoodsStatusWithdrawn
	}
	if now.Before(g.StartTime) {
		return GoodsStatusNotStarted
	}
	if !now.Before(g.EndTime) {
		return GoodsStatusEnded
	}
	return GoodsStatusOngoing
}
