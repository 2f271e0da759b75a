package push

import (
	"context"
	"errors"
	"time"

	"puasapush/internal/storage"
)

const DefaultSendTimeout = 15 * time.Second

// Dispatcher sends one payload to one recipient and classifies the result.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
}

func NewDispatcher(t Transport, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{transport: t, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, sub storage.Subscription, body []byte) Outcome {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out := Outcome{RecipientID: sub.Endpoint}
	if err := d.transport.Send(sctx, sub, body); err != nil {
		out.Err = err
		out.PermanentFailure = errors.Is(err, ErrPermanent)
		return out
	}
	out.Succeeded = true
	return out
}
