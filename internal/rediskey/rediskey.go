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

// Package rediskey centralizes the fast-store key layout so it is not
// scattered across services. Every key carries the global "seckill:"
// prefix; changing a key shape here changes it everywhere.
package rediskey

import (
	"fmt"
	"time"
)

const prefix = "seckill:"

// Expiries for the keys below.
const (
	StockTTL  = 7 * 24 * time.Hour
	KilledTTL = 7 * 24 * time.Hour
	LockTTL   = 10 * time.Second

	// Compensation task records are retained for postmortems.
	TaskTTL = 24 * time.Hour

	// Worker-id leases are renewed well before expiry.
	WorkerIDTTL = 24 * time.Hour
)

// Stock is the cached stock counter for an item, integer text.
func Stock(goodsID int64) string {
	return fmt.Sprintf("%sstock:%d", prefix, goodsID)
}

// Killed marks that a user has already claimed a unit of an item.
func Killed(goodsID, userID int64) string {
	return fmt.Sprintf("%skilled:%d:%d", prefix, goodsID, userID)
}

// Lock is the generic distributed-lock key for a named resource.
func Lock(name string) string {
	return prefix + "lock:" + name
}

// ReserveLock serializes one user's attempts on one item.
func ReserveLock(goodsID, userID int64) string {
	return fmt.Sprintf("%slock:seckill:%d:%d", prefix, goodsID, userID)
}

// UserToken stores the active bearer token for a user.
func UserToken(userID int64) string {
	return fmt.Sprintf("%suser:token:%d", prefix, userID)
}

// CompensationTask holds one task record as JSON.
func CompensationTask(taskID string) string {
	return prefix + "compensation:task:" + taskID
}

// CompensationPending is the set of task ids awaiting execution.
func CompensationPending() string {
	return prefix + "compensation:pending"
}

// WorkerID is the snowflake worker-id lease for a service instance.
func WorkerID(instanceID string) string {
	return prefix + "snowflake:worker-id:" + instanceID
}

// WorkerIDCounter is the atomic counter worker ids are drawn from.
func WorkerIDCounter() string {
	return prefix + "snowflake:counter"
}
