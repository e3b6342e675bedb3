package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Compensation task kinds. Each kind names the side effect that failed
// and has to be replayed until it sticks.
const (
	TaskStockRollback    = "STOCK_ROLLBACK"
	TaskKilledMarkRemove = "KILLED_MARK_REMOVE"
	TaskStockSync        = "STOCK_SYNC"
)

// Compensation task states.
const (
	TaskStatePending = "PENDING"
	TaskStateSuccess = "SUCCESS"
	TaskStateFailed  = "FAILED"
)

// DefaultMaxAttempts bounds replay before a task is declared failed and
// escalated to a human.
const DefaultMaxAttempts = 3

// CompensationTask is one pending side-effect replay, stored as JSON in
// the fast store and indexed by the pending set.
type CompensationTask struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	State       string          `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextRun     time.Time       `json:"next_run"`
	CreatedAt   time.Time       `json:"created_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// NewCompensationTask builds a pending task due immediately.
func NewCompensationTask(kind string, payload interface{}) (*CompensationTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &CompensationTask{
		ID:          GenerateIDWithPrefix("comp"),
		Kind:        kind,
		Payload:     raw,
		State:       TaskStatePending,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		NextRun:     now,
		CreatedAt:   now,
	}, nil
}

// Due reports whether the task should be dispatched at now.
func (t *CompensationTask) Due(now time.Time) bool {
	return t.State == TaskStatePending && t.Attempts < t.MaxAttempts && !t.NextRun.After(now)
}

// RecordFailure bumps the attempt counter and pushes the next run out
// exponentially: 2, 4, 8 minutes.
func (t *CompensationTask) RecordFailure(now time.Time, cause error) {
	t.Attempts++
	t.LastError = cause.Error()
	if t.Attempts >= t.MaxAttempts {
		t.State = TaskStateFailed
		return
	}
	t.NextRun = now.Add(time.Duration(1<<t.Attempts) * time.Minute)
}

// StockRollbackPayload returns count units of an item to the fast store.
type StockRollbackPayload struct {
	GoodsID int64 `json:"goods_id"`
	Count   int   `json:"count"`
}

// KilledMarkRemovePayload clears a user's claim mark on an item.
type KilledMarkRemovePayload struct {
	GoodsID int64 `json:"goods_id"`
	UserID  int64 `json:"user_id"`
}

// StockSyncPayload re-applies a durable stock decrement that failed
// during order materialization. The order number lets the handler skip
// the decrement when the order has since left the payment window.
type StockSyncPayload struct {
	OrderNo int64 `json:"order_no"`
	GoodsID int64 `json:"goods_id"`
	Count   int   `json:"count"`
}

// GenerateIDWithPrefix generates a prefixed UUID, giving operators a
// hint of what kind of record an id belongs to.
func GenerateIDWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}
