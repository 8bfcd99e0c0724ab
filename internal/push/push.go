package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/pkg/models"
)

// ErrSubscriptionGone means the push service no longer knows the
// subscription (404/410) and it should be deleted.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Sender delivers VAPID-signed web push messages.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	log        *slog.Logger
}

func NewSender(cfg config.PushConfig, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: strings.TrimPrefix(cfg.Subject, "mailto:"),
		ttl:        cfg.TTL,
		log:        log.With("component", "push"),
	}
}

// PublicKey is the application server key browsers subscribe with.
func (s *Sender) PublicKey() string { return s.publicKey }

func (s *Sender) Configured() bool { return s.publicKey != "" && s.privateKey != "" }

// Send encrypts msg for sub and posts it to the subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error {
	if !s.Configured() {
		return fmt.Errorf("%w: VAPID_PUBLIC_KEY/VAPID_PRIVATE_KEY", domain.ErrConfigurationMissing)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("push: encode payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	s.log.Debug("push delivered", "status", resp.StatusCode)
	return nil
}
