// Package events is the transactional outbox for task and credit lifecycle
// events. Services enqueue a NotifyJobArgs with river's InsertTx inside the
// same database transaction as the state change, so an event exists exactly
// when its transition committed. The worker delivers events to whatever
// transport the host configures; the core never talks to chat or
// notification systems directly.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/sony/gobreaker"
)

// Event kinds emitted by the core services.
const (
	KindTaskCreated     = "task_created"
	KindTaskRequested   = "task_requested"
	KindTaskAssigned    = "task_assigned"
	KindTaskStarted     = "task_started"
	KindTaskCompleted   = "task_completed"
	KindTaskCancelled   = "task_cancelled"
	KindTaskWithdrawn   = "task_withdrawn"
	KindCreditsSent     = "credits_sent"
	KindDisputeResolved = "dispute_resolved"
)

type NotifyJobArgs struct {
	Event   string          `json:"kind"`
	TaskID  *uuid.UUID      `json:"task_id,omitempty"`
	ActorID uuid.UUID       `json:"actor_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (NotifyJobArgs) Kind() string { return "notify" }

// NotifyWorker posts events to the notification webhook. Deliveries go
// through a circuit breaker so a dead webhook sheds load instead of tying
// up workers; river retries anything that errors.
type NotifyWorker struct {
	river.WorkerDefaults[NotifyJobArgs]
	webhookURL string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
}

func NewNotifyWorker(webhookURL string, log *slog.Logger) *NotifyWorker {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "notify-webhook",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: log,
	}
}

func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyJobArgs]) error {
	args := job.Args

	if w.webhookURL == "" {
		// No emitter configured; the event is logged and dropped.
		w.log.Info("event", "kind", args.Event, "task_id", args.TaskID, "actor_id", args.ActorID)
		return nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = w.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("deliver %s event: %w", args.Event, err)
	}
	return nil
}
