package model

import "github.com/shopspring/decimal"

// SeckillMessage is the payload of a reservation task on the
// reservation topic. It carries the goods snapshot taken at admission,
// so the consumer builds the order row without a round trip and a
// price edit after admission cannot change the charged total.
type SeckillMessage struct {
	OrderNo      int64           `json:"orderNo"`
	UserID       int64           `json:"userId"`
	GoodsID      int64           `json:"goodsId"`
	GoodsName    string          `json:"goodsName"`
	GoodsImg     string          `json:"goodsImg"`
	SeckillPrice decimal.Decimal `json:"seckillPrice"`
	Count        int             `json:"count"`
	Channel      int             `json:"channel"`
	Timestamp    int64           `json:"timestamp"`
}

// OrderTimeoutMessage is the delayed payload on the timeout topic. It
// fires after the payment window and closes the order if it was never
// paid.
type OrderTimeoutMessage struct {
	OrderNo   int64 `json:"orderNo"`
	UserID    int64 `json:"userId"`
	GoodsID   int64 `json:"goodsId"`
	Count     int   `json:"count"`
	Timestamp int64 `json:"timestamp"`
}
