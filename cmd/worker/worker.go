package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/logger"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
	"github.com/google/uuid"
)

var logg = logger.New()

// Worker consumes domain events from Kafka and materializes per-user
// notifications in Cassandra concurrently.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}(i)
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg.Value:
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop decodes events from the job queue and dispatches them.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.handleRaw(ctx, data); err != nil {
				logg.Error("worker", "Failed to process event", err)
			}
		}
	}
}

// handleRaw decodes one event payload and routes it.
func (w *Worker) handleRaw(ctx context.Context, data []byte) error {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("invalid event payload: %w", err)
	}
	return w.HandleEvent(ctx, ev)
}

// HandleEvent turns one domain event into notification rows.
func (w *Worker) HandleEvent(ctx context.Context, ev models.Event) error {
	switch ev.Type {
	case models.EventPostCreated:
		return w.notifySubscribers(ctx, ev)
	case models.EventCommentAdded, models.EventSubscribed:
		return w.notifyOne(ev)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// notifySubscribers fans a post_created event out to every subscriber of
// the author, with bounded concurrency.
func (w *Worker) notifySubscribers(ctx context.Context, ev models.Event) error {
	subscribers, err := w.store.SubscriberIDs(ev.ActorID)
	if err != nil {
		return fmt.Errorf("fetch subscribers of post author: %w", err)
	}

	const fanoutLimit = 20
	var fanoutWG sync.WaitGroup
	semaphore := make(chan struct{}, fanoutLimit)

	for _, uid := range subscribers {
		if uid == ev.ActorID {
			// self-subscription edge: no point notifying the author
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			fanoutWG.Add(1)
			semaphore <- struct{}{}

			go func(recipient string) {
				defer fanoutWG.Done()
				defer func() { <-semaphore }()
				if err := w.store.AddNotification(notification(recipient, ev)); err != nil {
					logg.Error("worker", "Failed to write notification", err)
				}
			}(uid)
		}
	}

	fanoutWG.Wait()
	logg.Info("worker", "Post notifications delivered to subscribers (post ID anonymized)")
	return nil
}

// notifyOne writes a single notification to the event's subject.
func (w *Worker) notifyOne(ev models.Event) error {
	if ev.SubjectID == "" || ev.SubjectID == ev.ActorID {
		return nil
	}
	if err := w.store.AddNotification(notification(ev.SubjectID, ev)); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	logg.Info("worker", "Notification delivered (user IDs anonymized)")
	return nil
}

func notification(recipient string, ev models.Event) models.Notification {
	created := ev.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return models.Notification{
		ID:      uuid.NewString(),
		UserID:  recipient,
		Kind:    ev.Type,
		ActorID: ev.ActorID,
		PostID:  ev.PostID,
		Created: created,
	}
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down Kafka reader and Cassandra session.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing Cassandra session")
	w.store.Close()
	return nil
}
