package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"puasapush/internal/storage"
)

const DefaultTTLSeconds = 300

type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the VAPID contact, "mailto:..." or an https URL.
	Subject    string
	TTLSeconds int
	HTTPClient *http.Client
}

// WebPush is the Transport backed by webpush-go (VAPID + aes128gcm).
type WebPush struct {
	cfg WebPushConfig
}

func NewWebPush(cfg WebPushConfig) *WebPush {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = DefaultTTLSeconds
	}
	return &WebPush{cfg: cfg}
}

func (w *WebPush) Send(ctx context.Context, sub storage.Subscription, body []byte) error {
	opts := &webpush.Options{
		// webpush-go prepends "mailto:" to anything that is not an https URL.
		Subscriber:      strings.TrimPrefix(w.cfg.Subject, "mailto:"),
		TTL:             w.cfg.TTLSeconds,
		VAPIDPublicKey:  w.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: w.cfg.VAPIDPrivateKey,
	}
	if w.cfg.HTTPClient != nil {
		opts.HTTPClient = w.cfg.HTTPClient
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
