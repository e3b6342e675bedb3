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
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/database"
	"github.com/surgekit/surge/internal/cache"
	redis_db "github.com/surgekit/surge/internal/redis-db"
	"github.com/surgekit/surge/internal/snowflake"
	"github.com/surgekit/surge/internal/stockcache"
	"github.com/surgekit/surge/internal/token"
	"github.com/surgekit/surge/model"
)

var tracer = otel.Tracer("surge.reservations")

// Surge wires the admission engine together: fast-store primitives,
// the durable repository, the task queue and the compensation loop.
type Surge struct {
	queue       *Queue
	redis       redis.UniversalClient
	datasource  database.IDataSource
	stock       *stockcache.Store
	generator   *snowflake.Generator
	cache       cache.Cache
	tokens      *token.Manager
	compensator *Compensator

	// Indirection over the broker publishes so failure paths can be
	// exercised without a running broker.
	enqueueReservation func(ctx context.Context, msg *model.SeckillMessage) error
	enqueueTimeout     func(ctx context.Context, msg *model.OrderTimeoutMessage, window time.Duration) error
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewSurge initializes a Surge instance from the loaded configuration.
// It leases a snowflake worker id from the fast store and keeps the
// lease renewed for the life of the process.
func NewSurge(db database.IDataSource) (*Surge, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}

	workerID, err := snowflake.AllocateWorkerID(context.Background(), redisClient.Client(), configuration.Snowflake.InstanceID)
	if err != nil {
		return nil, err
	}
	go snowflake.RenewWorkerID(context.Background(), redisClient.Client(), configuration.Snowflake.InstanceID, workerID)

	generator, err := snowflake.NewGenerator(configuration.Snowflake.DatacenterID, workerID)
	if err != nil {
		return nil, err
	}

	catalogCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	newSurge := &Surge{
		queue:      NewQueue(configuration),
		redis:      redisClient.Client(),
		datasource: db,
		stock:      stockcache.NewStore(redisClient.Client()),
		generator:  generator,
		cache:      catalogCache,
		tokens:     token.NewManager(configuration.Jwt.Secret, configuration.Jwt.ExpireHours),
	}
	newSurge.compensator = NewCompensator(redisClient.Client(), newSurge.defaultCompensationHandlers())
	newSurge.enqueueReservation = newSurge.queue.EnqueueReservation
	newSurge.enqueueTimeout = newSurge.queue.EnqueueOrderTimeout
	return newSurge, nil
}

// Tokens exposes the token manager for the API auth middleware.
func (s *Surge) Tokens() *token.Manager {
	return s.tokens
}

// Compensator exposes the compensation scheduler so the workers process
// can run its scan loop.
func (s *Surge) Compensator() *Compensator {
	return s.compensator
}
