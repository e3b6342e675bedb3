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

package snowflake

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/surgekit/surge/internal/rediskey"
)

// AllocateWorkerID leases a worker id for this instance from the shared
// counter. Each instance increments the counter once and takes the
// result modulo the worker id space, then records the lease under its
// instance id so operators can see who holds what.
func AllocateWorkerID(ctx context.Context, client redis.UniversalClient, instanceID string) (int64, error) {
	n, err := client.Incr(ctx, rediskey.WorkerIDCounter()).Result()
	if err != nil {
		return 0, err
	}
	workerID := n % (MaxWorkerID + 1)

	leaseKey := rediskey.WorkerID(instanceID)
	if err := client.Set(ctx, leaseKey, strconv.FormatInt(workerID, 10), rediskey.WorkerIDTTL).Err(); err != nil {
		return 0, err
	}
	logrus.Infof("allocated snowflake worker id %d for instance %s", workerID, instanceID)
	return workerID, nil
}

// RenewWorkerID keeps the instance's lease alive until ctx is cancelled.
// It refreshes well before the lease TTL so a paused process does not
// silently lose its id to another instance.
func RenewWorkerID(ctx context.Context, client redis.UniversalClient, instanceID string, workerID int64) {
	interval := rediskey.WorkerIDTTL / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	leaseKey := rediskey.WorkerID(instanceID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := client.Set(ctx, leaseKey, strconv.FormatInt(workerID, 10), rediskey.WorkerIDTTL).Err()
			if err != nil {
				logrus.Errorf("failed to renew snowflake worker id lease for %s: %v", instanceID, err)
				continue
			}
			logrus.Debugf("renewed snowflake worker id lease for %s", instanceID)
		}
	}
}

// ReleaseWorkerID drops the instance's lease on shutdown.
func ReleaseWorkerID(ctx context.Context, client redis.UniversalClient, instanceID string) error {
	return client.Del(ctx, rediskey.WorkerID(instanceID)).Err()
}
