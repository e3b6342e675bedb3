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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/surgekit/surge/config"
	redis_db "github.com/surgekit/surge/internal/redis-db"
	"github.com/surgekit/surge/model"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processReservation consumes an admitted reservation and materializes
// the durable order. Errors are returned so asynq redelivers the task;
// materialization is idempotent on the order number.
func (b *surgeInstance) processReservation(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("surge.orders.worker").Start(ctx, "Process Reservation From Queue")
	defer span.End()

	var msg model.SeckillMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.surge.MaterializeOrder(ctx, &msg); err != nil {
		logrus.Infof("Reservation %d pushed back for retry due to error: %v", msg.OrderNo, err)
		return err
	}

	log.Println(" [*] Order Materialized", msg.OrderNo)
	return nil
}

// processOrderTimeout handles a payment-deadline message. Orders still
// awaiting payment are expired and their stock released.
func (b *surgeInstance) processOrderTimeout(ctx context.Context, t *asynq.Task) error {
	var msg model.OrderTimeoutMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.surge.HandleOrderTimeout(ctx, &msg); err != nil {
		return err
	}

	logrus.Printf(" [*] Order Timeout Handled %d", msg.OrderNo)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.ReservationTopic] = 3
	queues[cfg.Queue.TimeoutTopic] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 4,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *surgeInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.ReservationTopic, b.processReservation)
	mux.HandleFunc(cfg.Queue.TimeoutTopic, b.processOrderTimeout)
}

// workerCommands defines the "workers" command. The workers consume the
// reservation and timeout topics and run the compensation sweeper.
func workerCommands(b *surgeInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start surge workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			// The compensation sweeper shares the worker process so a
			// single deployment covers all background repair work.
			go b.surge.Compensator().Run(ctx)

			redisOption, _ := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
