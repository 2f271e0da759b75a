package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"puasapush/internal/storage"
)

// ErrPermanent marks a send failure for an endpoint that no longer exists
// (404 Not Found or 410 Gone). Any other send error is transient.
var ErrPermanent = errors.New("push endpoint gone")

// Payload is the notification body handed to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

// Encode renders the payload as JSON without HTML escaping, so URLs keep a plain "&".
func (p Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Transport sends an encoded payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub storage.Subscription, body []byte) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, sub storage.Subscription, body []byte) error

func (f TransportFunc) Send(ctx context.Context, sub storage.Subscription, body []byte) error {
	return f(ctx, sub, body)
}

// Remover deletes a subscription by endpoint. Removing an unknown endpoint
// must not be an error.
type Remover interface {
	Remove(ctx context.Context, endpoint string) error
}

// Outcome is the result of one dispatch attempt.
type Outcome struct {
	RecipientID      string
	Succeeded        bool
	PermanentFailure bool
	Err              error
}

// Result aggregates a batch. Failed includes permanent failures; Pruned counts
// the subscriptions removed because of them.
type Result struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Pruned  int `json:"pruned"`
}
