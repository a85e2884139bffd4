// Package tasks defines the asynq task types shared by the API and worker.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeCourierStatus applies a courier webhook status update to a consignment.
const TypeCourierStatus = "courier:status"

// QueueCourier is the asynq queue courier tasks are routed to.
const QueueCourier = "courier"

// CourierStatus is the payload of a TypeCourierStatus task.
type CourierStatus struct {
	ProviderID   string          `json:"providerId"`
	ProviderCode string          `json:"providerCode"`
	TrackingCode string          `json:"trackingCode"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	ReceivedAt   time.Time       `json:"receivedAt"`
}

// NewCourierStatus builds the task for p. The task id is derived from the
// event so asynq rejects duplicates while the original is retained.
func NewCourierStatus(p CourierStatus, eventID string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode courier status: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueCourier),
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
	if eventID != "" {
		opts = append(opts, asynq.TaskID(TypeCourierStatus+":"+eventID))
	}
	return asynq.NewTask(TypeCourierStatus, payload, opts...), nil
}

// ParseCourierStatus decodes the payload of t.
func ParseCourierStatus(t *asynq.Task) (CourierStatus, error) {
	var p CourierStatus
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode courier status: %w: %w", err, asynq.SkipRetry)
	}
	if p.ProviderID == "" || p.TrackingCode == "" {
		return p, fmt.Errorf("courier status missing provider or tracking code: %w", asynq.SkipRetry)
	}
	return p, nil
}
