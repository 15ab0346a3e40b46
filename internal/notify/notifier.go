// Package notify carries the notification and reminder side effects fired by
// document state transitions. Delivery is fire-and-forget relative to the
// triggering transaction: failures are logged, never propagated.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Kind discriminates notification events.
type Kind string

const (
	KindPaymentReceived Kind = "payment_received"
	KindInvoicePaid     Kind = "invoice_paid"
	KindInvoiceOverdue  Kind = "invoice_overdue"
)

// Event is the fixed payload shape handed to the notification collaborator.
type Event struct {
	Kind           Kind    `json:"kind"`
	TenantID       string  `json:"tenant_id"`
	DocumentID     int64   `json:"document_id"`
	DocumentNumber string  `json:"document_number"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Final          bool    `json:"final"`
}

// DedupeKey is stable per event occurrence, letting the delivery side drop
// replays after at-least-once queue retries.
func (e Event) DedupeKey() string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%s:%d:%g", e.Kind, e.TenantID, e.DocumentID, e.Amount))).String()
}

// Notifier delivers events to the notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// TaskTypeSend is the asynq task type carrying notification events.
const TaskTypeSend = "notify:send"

// NewSendTask packs an event into an asynq task.
func NewSendTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSend, data, asynq.TaskID(event.DedupeKey())), nil
}

// QueueNotifier enqueues events for the background worker.
type QueueNotifier struct {
	client *asynq.Client
	queue  string
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(client *asynq.Client, queue string) *QueueNotifier {
	if queue == "" {
		queue = "default"
	}
	return &QueueNotifier{client: client, queue: queue}
}

// Notify enqueues the event. Duplicate enqueues of the same occurrence are
// collapsed by the task id.
func (n *QueueNotifier) Notify(ctx context.Context, event Event) error {
	task, err := NewSendTask(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(n.queue)); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// HandleSendTask processes TaskTypeSend tasks on the worker.
func HandleSendTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var event Event
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			return asynq.SkipRetry
		}
		// Delivery transport (email/webhook) is an external collaborator;
		// the worker records the handoff.
		logger.Info("notification dispatched",
			slog.String("kind", string(event.Kind)),
			slog.String("tenant", event.TenantID),
			slog.String("document", event.DocumentNumber),
			slog.Float64("amount", event.Amount),
			slog.String("currency", event.Currency),
		)
		return nil
	}
}

// LogNotifier writes events to the logger only; used in tests and when no
// queue is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(ctx context.Context, event Event) error {
	if n.Logger != nil {
		n.Logger.Info("notification",
			slog.String("kind", string(event.Kind)),
			slog.String("tenant", event.TenantID),
			slog.Int64("document_id", event.DocumentID),
		)
	}
	return nil
}
