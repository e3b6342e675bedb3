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
	"time"

	"github.com/surgekit/surge/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	goods // Interface for catalog and stock operations
	order // Interface for order-related operations
	user  // Interface for user-related operations
}

// goods defines methods for the catalog and its durable stock counters.
type goods interface {
	CreateGoods(ctx context.Context, g *model.Goods) (*model.Goods, error)                          // Inserts a new catalog item
	GetGoodsByID(ctx context.Context, id int64) (*model.Goods, error)                               // Retrieves an item by id
	GetAllGoods(ctx context.Context, filter model.GoodsFilter) ([]model.Goods, error)               // Lists catalog items
	DeductStockOptimistic(ctx context.Context, goodsID int64, count, version int) (bool, error)     // Guarded decrement with a version check
	DeductStockDirect(ctx context.Context, goodsID int64, count int) (bool, error)                  // Guarded decrement without a version check
	RollbackStock(ctx context.Context, goodsID int64, count int) error                              // Unconditional increment
	UpdateGoodsStatus(ctx context.Context, goodsID int64, status model.GoodsStatus) (bool, error)   // Moves an item between lifecycle states
}

// order defines methods for handling orders.
type order interface {
	RecordOrder(ctx context.Context, o *model.Order) (*model.Order, error)                       // Inserts a materialized order
	GetOrderByOrderNo(ctx context.Context, orderNo int64) (*model.Order, error)                  // Retrieves an order by its number
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)                            // Retrieves an order by row id
	GetOrdersByUser(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)        // Lists a user's orders
	HasActiveOrder(ctx context.Context, userID, goodsID int64) (bool, error)                     // Checks for a non-terminal order on the pair
	UpdateOrderStatus(ctx context.Context, orderNo int64, from, to model.OrderStatus) (bool, error) // Compare-and-set status transition
	MarkOrderPaid(ctx context.Context, orderNo int64, paidAt time.Time) (bool, error)            // AWAITING_PAYMENT -> PAID with pay time
}

// user defines methods for handling users.
type user interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)           // Registers a new user
	GetUserByID(ctx context.Context, id int64) (*model.User, error)               // Retrieves a user by id
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)  // Retrieves a user by username
}
