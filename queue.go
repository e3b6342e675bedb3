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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/surgekit/surge/config"
	redis_db "github.com/surgekit/surge/internal/redis-db"
	"github.com/surgekit/surge/model"
)

// enqueueTimeout bounds how long a reservation request may wait on the
// broker before the whole admission is rolled back.
const enqueueTimeout = 3 * time.Second

// delayTiers are the discrete delays the timeout topic supports, in
// ascending order. A payment window maps to the smallest tier that is
// not shorter than it.
var delayTiers = []time.Duration{
	1 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
	1 * time.Minute, 2 * time.Minute, 3 * time.Minute, 4 * time.Minute,
	5 * time.Minute, 6 * time.Minute, 7 * time.Minute, 8 * time.Minute,
	9 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute,
	1 * time.Hour, 2 * time.Hour,
}

// DelayTier returns the smallest supported delay tier >= d. Windows
// beyond the largest tier are clamped to it.
func DelayTier(d time.Duration) time.Duration {
	for _, tier := range delayTiers {
		if tier >= d {
			return tier
		}
	}
	return delayTiers[len(delayTiers)-1]
}

// Queue wraps the asynq client for the reservation and timeout topics.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueReservation publishes the reservation message the order
// materializer consumes. The task id is the order number, so broker
// redelivery or a retried HTTP request cannot produce two tasks for
// one reservation.
func (q *Queue) EnqueueReservation(ctx context.Context, msg *model.SeckillMessage) error {
	ctx, span := tracer.Start(ctx, "Adding Reservation To Queue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	task := asynq.NewTask(cfg.Queue.ReservationTopic, payload,
		asynq.TaskID(strconv.FormatInt(msg.OrderNo, 10)),
		asynq.Queue(cfg.Queue.ReservationTopic),
		asynq.MaxRetry(5))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// Already enqueued for this order number.
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued reservation: %d", msg.OrderNo)
	return nil
}

// EnqueueOrderTimeout schedules the payment-deadline message. The
// delivery delay is snapped to a discrete tier, so the effective window
// can be slightly longer than configured but never shorter.
func (q *Queue) EnqueueOrderTimeout(ctx context.Context, msg *model.OrderTimeoutMessage, window time.Duration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	task := asynq.NewTask(cfg.Queue.TimeoutTopic, payload,
		asynq.TaskID(fmt.Sprintf("timeout:%d", msg.OrderNo)),
		asynq.Queue(cfg.Queue.TimeoutTopic),
		asynq.ProcessIn(DelayTier(window)),
		asynq.MaxRetry(5))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued order timeout: %d in %s", msg.OrderNo, DelayTier(window))
	return nil
}

// GetReservationFromQueue retrieves a pending reservation task by its
// order number, for the order-check endpoint.
func (q *Queue) GetReservationFromQueue(orderNo int64) (*model.SeckillMessage, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	task, err := q.Inspector.GetTaskInfo(cfg.Queue.ReservationTopic, strconv.FormatInt(orderNo, 10))
	if err != nil || task == nil {
		return nil, nil
	}
	var msg model.SeckillMessage
	if err := json.Unmarshal(task.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
