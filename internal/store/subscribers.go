package store

import (
	"context"

	"github.com/google/uuid"

	dbtypes "github.com/nitesh/lega/internal/db"
	"github.com/nitesh/lega/pkg/models"
)

// SaveSubscriber stores sub, keyed by endpoint. Re-subscribing the same
// endpoint refreshes its keys and interests and keeps the original id,
// which is written back to sub.ID.
func (s *Store) SaveSubscriber(ctx context.Context, sub *models.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Interests == nil {
		sub.Interests = dbtypes.StringSlice{}
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}

	query := s.db.Rebind(`
INSERT INTO push_subscriptions (id, endpoint, p256dh, auth, interests, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (endpoint) DO UPDATE SET
 p256dh = excluded.p256dh,
 auth = excluded.auth,
 interests = excluded.interests
RETURNING id`)

	var id string
	err := s.db.QueryRowxContext(ctx, query,
		sub.ID, sub.Endpoint, sub.P256dh, sub.Auth, sub.Interests, sub.CreatedAt,
	).Scan(&id)
	if err != nil {
		return mapError(err, "save subscriber")
	}
	sub.ID = id
	return nil
}

// ListSubscribers returns every stored subscription, oldest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	query, args, err := s.sb.
		Select("id", "endpoint", "p256dh", "auth", "interests", "created_at").
		From("push_subscriptions").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows := []*models.Subscriber{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, "list subscribers")
	}
	return rows, nil
}

// DeleteSubscriber removes the subscription for endpoint, if any.
func (s *Store) DeleteSubscriber(ctx context.Context, endpoint string) error {
	query, args, err := s.sb.Delete("push_subscriptions").Where("endpoint = ?", endpoint).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "delete subscriber")
	}
	return nil
}
