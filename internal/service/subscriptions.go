package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/internal/push"
	"github.com/nitesh/lega/internal/tags"
	"github.com/nitesh/lega/pkg/models"
)

const (
	welcomeTitle = "Lega"
	welcomeBody  = "Welcome! You are subscribed to legislative alerts."
	pushBodyMax  = 200
)

// Subscriptions stores browser push subscriptions and alerts subscribers
// about new bills that match their interests.
type Subscriptions struct {
	store  SubscriberStore
	sender PushSender
	log    *slog.Logger
}

func NewSubscriptions(store SubscriberStore, sender PushSender, log *slog.Logger) *Subscriptions {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriptions{store: store, sender: sender, log: log.With("component", "subscriptions")}
}

// VAPIDPublicKey returns the key browsers subscribe with.
func (s *Subscriptions) VAPIDPublicKey() (string, error) {
	key := s.sender.PublicKey()
	if key == "" {
		return "", fmt.Errorf("%w: VAPID_PUBLIC_KEY", domain.ErrConfigurationMissing)
	}
	return key, nil
}

// Subscribe stores sub with its interests and sends a welcome push.
// A failed welcome push does not undo the subscription.
func (s *Subscriptions) Subscribe(ctx context.Context, sub models.PushSubscription, interests []string) (*models.Subscriber, error) {
	if strings.TrimSpace(sub.Endpoint) == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, fmt.Errorf("%w: endpoint and keys are required", domain.ErrInvalidSubscription)
	}
	rec := &models.Subscriber{
		Endpoint:  sub.Endpoint,
		P256dh:    sub.Keys.P256dh,
		Auth:      sub.Keys.Auth,
		Interests: normalizeInterests(interests),
	}
	if err := s.store.SaveSubscriber(ctx, rec); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, s.log).With("subscriber_id", rec.ID)
	log.Info("subscriber saved", "interests", []string(rec.Interests))

	err := s.sender.Send(ctx, sub, models.PushMessage{
		Title: welcomeTitle,
		Body:  welcomeBody,
		Data:  models.PushMessageData{URL: "/"},
	})
	if err != nil {
		log.Warn("welcome push failed", "error", err)
		s.dropIfGone(ctx, rec.Endpoint, err)
	}
	return rec, nil
}

// NotifyBill pushes b to every subscriber whose interests intersect its
// tags and returns the number of successful deliveries.
func (s *Subscriptions) NotifyBill(ctx context.Context, b *models.Bill) int {
	log := logger.FromContext(ctx, s.log).With("bill_id", b.BillID)
	if !s.sender.Configured() {
		log.Debug("push not configured; skipping notifications")
		return 0
	}
	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		log.Warn("list subscribers failed", "error", err)
		return 0
	}

	msg := BillMessage(b)
	sent := 0
	for _, sub := range subs {
		if !tags.Intersects(sub.Interests, b.Tags) {
			continue
		}
		if err := s.sender.Send(ctx, sub.Subscription(), msg); err != nil {
			log.Warn("push failed", "subscriber_id", sub.ID, "error", err)
			s.dropIfGone(ctx, sub.Endpoint, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Info("bill notifications sent", "count", sent)
	}
	return sent
}

func (s *Subscriptions) dropIfGone(ctx context.Context, endpoint string, err error) {
	if !errors.Is(err, push.ErrSubscriptionGone) {
		return
	}
	if err := s.store.DeleteSubscriber(ctx, endpoint); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("delete expired subscription failed", "error", err)
	}
}

// BillMessage builds the push payload announcing b.
func BillMessage(b *models.Bill) models.PushMessage {
	body := []rune(b.Summary.NarrationText())
	if len(body) > pushBodyMax {
		body = body[:pushBodyMax]
	}
	url := b.SourceURL
	if url == "" {
		url = "/"
	}
	return models.PushMessage{
		Title: "New Legislation: " + b.Title,
		Body:  string(body),
		Data:  models.PushMessageData{URL: url, BillID: b.BillID, Tags: []string(b.Tags)},
	}
}

func normalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, i := range in {
		i = strings.ToLower(strings.TrimSpace(i))
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}
