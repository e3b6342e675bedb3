package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state. The numeric values are part
// of the stored format and the API contract.
type OrderStatus int

const (
	OrderStatusAwaitingPayment OrderStatus = 0
	OrderStatusPaid            OrderStatus = 1
	OrderStatusShipped         OrderStatus = 2
	OrderStatusReceived        OrderStatus = 3
	OrderStatusCancelled       OrderStatus = 4
	OrderStatusExpired         OrderStatus = 5
)

// legalTransitions is the full order state machine. Absent states are
// terminal.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPaid:            {OrderStatusShipped},
	OrderStatusShipped:         {OrderStatusReceived},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusAwaitingPayment:
		return "AWAITING_PAYMENT"
	case OrderStatusPaid:
		return "PAID"
	case OrderStatusShipped:
		return "SHIPPED"
	case OrderStatusReceived:
		return "RECEIVED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusExpired:
		return "EXPIRED"
	}
	return "UNKNOWN"
}

// Purchase channels.
const (
	ChannelPC          = 1
	ChannelAndroid     = 2
	ChannelIOS         = 3
	ChannelMiniProgram = 4
)

// ParseChannel maps a client-supplied channel label to its numeric
// code. Both names and numeric strings are accepted; anything
// unrecognized falls back to PC rather than rejecting the request.
func ParseChannel(raw string) int {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PC", "1":
		return ChannelPC
	case "ANDROID", "2":
		return ChannelAndroid
	case "IOS", "3":
		return ChannelIOS
	case "WECHAT", "MINIPROGRAM", "4":
		return ChannelMiniProgram
	}
	return ChannelPC
}

type Order struct {
	ID          int64           `json:"-"`
	OrderNo     int64           `json:"order_no,string"`
	UserID      int64           `json:"user_id"`
	GoodsID     int64           `json:"goods_id"`
	GoodsName   string          `json:"goods_name"`
	GoodsImg    string          `json:"goods_img"`
	GoodsPrice  decimal.Decimal `json:"goods_price"`
	GoodsCount  int             `json:"goods_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Channel     int             `json:"channel"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	PayTime     *time.Time      `json:"pay_time,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Deleted     int             `json:"-"`
}

type OrderFilter struct {
	UserID int64        `json:"user_id"`
	Status *OrderStatus `json:"status"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
