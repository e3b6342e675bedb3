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
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/internal/notification"
	"github.com/surgekit/surge/internal/rediskey"
	"github.com/surgekit/surge/model"
)

// scanInterval is how often the scheduler sweeps the pending set.
const scanInterval = 60 * time.Second

// CompensationHandler replays one failed side effect. A nil return
// marks the task done; an error schedules the next attempt.
type CompensationHandler func(ctx context.Context, task *model.CompensationTask) error

// Compensator persists failed side effects in the fast store and
// replays them until they succeed or exhaust their attempts.
type Compensator struct {
	redis    redis.UniversalClient
	handlers map[string]CompensationHandler
}

func NewCompensator(client redis.UniversalClient, handlers map[string]CompensationHandler) *Compensator {
	return &Compensator{redis: client, handlers: handlers}
}

// EnqueueKind records a new pending task. Failures here are logged and
// swallowed: the caller is already on a failure path and has nothing
// better to do with the error.
func (c *Compensator) EnqueueKind(ctx context.Context, kind string, payload interface{}) {
	task, err := model.NewCompensationTask(kind, payload)
	if err != nil {
		logrus.Errorf("failed to build compensation task %s: %v", kind, err)
		return
	}
	if err := c.save(ctx, task); err != nil {
		logrus.Errorf("failed to persist compensation task %s: %v", task.ID, err)
		return
	}
	if err := c.redis.SAdd(ctx, rediskey.CompensationPending(), task.ID).Err(); err != nil {
		logrus.Errorf("failed to index compensation task %s: %v", task.ID, err)
		return
	}
	logrus.Warnf("compensation task enqueued - id: %s, kind: %s", task.ID, kind)
}

// Run sweeps the pending set on a fixed interval until ctx is
// cancelled.
func (c *Compensator) Run(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	logrus.Info("compensation scheduler started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("compensation scheduler stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep dispatches every due task once.
func (c *Compensator) Sweep(ctx context.Context) {
	ids, err := c.redis.SMembers(ctx, rediskey.CompensationPending()).Result()
	if err != nil {
		logrus.Errorf("failed to read compensation pending set: %v", err)
		return
	}

	now := time.Now()
	for _, id := range ids {
		task, err := c.load(ctx, id)
		if err != nil {
			logrus.Errorf("failed to load compensation task %s: %v", id, err)
			continue
		}
		if task == nil {
			// Record expired; nothing left to replay.
			c.remove(ctx, id)
			continue
		}
		if !task.Due(now) {
			if task.State != model.TaskStatePending {
				c.remove(ctx, id)
			}
			continue
		}
		c.dispatch(ctx, task)
	}
}

func (c *Compensator) dispatch(ctx context.Context, task *model.CompensationTask) {
	handler, ok := c.handlers[task.Kind]
	if !ok {
		logrus.Warnf("unknown compensation kind %q - id: %s, skipping", task.Kind, task.ID)
		return
	}

	if err := handler(ctx, task); err != nil {
		task.RecordFailure(time.Now(), err)
		if task.State == model.TaskStateFailed {
			logrus.Errorf("compensation task exhausted - id: %s, kind: %s: %v", task.ID, task.Kind, err)
			c.remove(ctx, task.ID)
			notification.NotifyError(errors.Wrapf(err, "compensation task %s (%s) failed after %d attempts", task.ID, task.Kind, task.Attempts))
		} else {
			logrus.Warnf("compensation task failed - id: %s, attempt: %d, next run: %s", task.ID, task.Attempts, task.NextRun.Format(time.RFC3339))
		}
		if saveErr := c.save(ctx, task); saveErr != nil {
			logrus.Errorf("failed to persist compensation task %s: %v", task.ID, saveErr)
		}
		return
	}

	task.State = model.TaskStateSuccess
	c.remove(ctx, task.ID)
	if err := c.save(ctx, task); err != nil {
		logrus.Errorf("failed to persist compensation task %s: %v", task.ID, err)
	}
	logrus.Infof("compensation task done - id: %s, kind: %s", task.ID, task.Kind)
}

func (c *Compensator) save(ctx context.Context, task *model.CompensationTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, rediskey.CompensationTask(task.ID), raw, rediskey.TaskTTL).Err()
}

func (c *Compensator) load(ctx context.Context, id string) (*model.CompensationTask, error) {
	raw, err := c.redis.Get(ctx, rediskey.CompensationTask(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	task := model.CompensationTask{}
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Compensator) remove(ctx context.Context, id string) {
	if err := c.redis.SRem(ctx, rediskey.CompensationPending(), id).Err(); err != nil {
		logrus.Errorf("failed to remove compensation task %s from pending set: %v", id, err)
	}
}

// defaultCompensationHandlers wires the three replayable side effects.
func (s *Surge) defaultCompensationHandlers() map[string]CompensationHandler {
	return map[string]CompensationHandler{
		model.TaskStockRollback: func(ctx context.Context, task *model.CompensationTask) error {
			var p model.StockRollbackPayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return err
			}
			return s.RollbackStockEverywhere(ctx, p.GoodsID, p.Count)
		},
		model.TaskKilledMarkRemove: func(ctx context.Context, task *model.CompensationTask) error {
			var p model.KilledMarkRemovePayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return err
			}
			return s.stock.ClearClaim(ctx, p.GoodsID, p.UserID)
		},
		model.TaskStockSync: func(ctx context.Context, task *model.CompensationTask) error {
			var p model.StockSyncPayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return err
			}
			// Only decrement while the order is still awaiting payment.
			// Once it expires or is cancelled the rollback path has
			// already evened the books; replaying the decrement would
			// lose a unit.
			order, err := s.datasource.GetOrderByOrderNo(ctx, p.OrderNo)
			if err != nil {
				return err
			}
			if order.Status != model.OrderStatusAwaitingPayment && order.Status != model.OrderStatusPaid {
				logrus.Infof("skipping stock sync for settled order %d (%s)", p.OrderNo, order.Status)
				return nil
			}
			return s.SyncStockDeduct(ctx, p.GoodsID, p.Count)
		},
	}
}
