package notify

import (
	"context"
	"errors"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// ErrDeliveryFailed indicates a sink could not hand off the run output
var ErrDeliveryFailed = errors.New("delivery failed")

// Delivery is what a finished run hands to its sinks
type Delivery struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Todo        domain.TodoList `json:"todo"`
	Report      string          `json:"report"`
}

// Sink receives the output of every successful run
type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}
