// Package scheduler runs recurring single-leader jobs plus a retrying
// ad-hoc job queue, both built on the same Redis primitives the rest of
// this codebase already uses: SetNX for leader election (a single atomic
// command) and shared/events' Publisher/Subscriber consumer-group
// mechanism for the ad-hoc queue.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/ledgerwire/shared/events"
	sharedredis "github.com/ledgerwire/shared/redis"
)

// Job is one recurring job: a name (used for the leader lock key and logs),
// a period, a lock TTL (how long a crashed leader's lock survives it), and
// the function to run while holding the lock.
type Job struct {
	Name   string
	Period time.Duration
	LockTTL time.Duration
	Run    func(ctx context.Context) error
}

// Scheduler runs the recurring job table and the ad-hoc job queue.
type Scheduler struct {
	redis      *sharedredis.Client
	instanceID string
	jobs       []Job

	publisher  *events.Publisher
	subscriber *events.Subscriber
}

func New(redis *sharedredis.Client, instanceID string) *Scheduler {
	return &Scheduler{
		redis:      redis,
		instanceID: instanceID,
		publisher:  events.NewPublisher(redis.Client),
	}
}

// Register adds a recurring job to the table. Call before Start.
func (s *Scheduler) Register(j Job) {
	if j.LockTTL == 0 {
		j.LockTTL = j.Period
	}
	s.jobs = append(s.jobs, j)
}

// SetAdHocHandler wires the ad-hoc job consumer: every ad-hoc job shares
// one stream, dispatched by event.Type inside handler. A job whose handler
// returns an error is re-enqueued with its "attempt" field raised by one,
// and the original message is ACKed once that publish succeeds.
func (s *Scheduler) SetAdHocHandler(consumerID string, handler events.Handler) {
	retrying := func(ctx context.Context, event events.Event) error {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		data, ok := event.Data.(map[string]any)
		if !ok {
			return err
		}
		attempt, _ := data["attempt"].(float64)
		data["attempt"] = int(attempt) + 1
		return s.Enqueue(ctx, event.Type, data)
	}
	s.subscriber = events.NewSubscriber(s.redis.Client, events.SubscriberConfig{
		Group:    "scheduler-group",
		Consumer: consumerID,
		Stream:   events.SchedulerJobsStream,
		Handler:  retrying,
	})
}

// Enqueue publishes an ad-hoc job onto the shared scheduler queue.
func (s *Scheduler) Enqueue(ctx context.Context, jobName string, payload any) error {
	return s.publisher.Publish(ctx, events.SchedulerJobsStream, jobName, payload)
}

// Start runs every registered recurring job on its own goroutine plus the
// ad-hoc consumer, until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		go s.runRecurring(ctx, j)
	}
	if s.subscriber != nil {
		go func() {
			if err := s.subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("scheduler: ad-hoc subscriber stopped: %v", err)
			}
		}()
	}
}

func (s *Scheduler) runRecurring(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnceIfLeader(ctx, j)
		}
	}
}

// runOnceIfLeader acquires the job's lock with SetNX before running it, so
// only one instance across the deployment executes a given job tick.
func (s *Scheduler) runOnceIfLeader(ctx context.Context, j Job) {
	lockKey := "lock:job:" + j.Name
	acquired, err := s.redis.SetNX(ctx, lockKey, s.instanceID, j.LockTTL).Result()
	if err != nil {
		log.Printf("scheduler: lock acquisition failed for %s: %v", j.Name, err)
		return
	}
	if !acquired {
		return
	}
	defer s.redis.Del(ctx, lockKey)

	if err := j.Run(ctx); err != nil {
		log.Printf("scheduler: job %s failed: %v", j.Name, err)
	}
}
