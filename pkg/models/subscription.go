package models

import (
	"time"

	dbtypes "github.com/nitesh/lega/internal/db"
)

// PushKeys are the client keys of a browser push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// PushSubscription is the object produced by PushManager.subscribe().
type PushSubscription struct {
	Endpoint string   `json:"endpoint" binding:"required"`
	Keys     PushKeys `json:"keys" binding:"required"`
}

// Subscriber is a stored push subscription with its interest tags.
type Subscriber struct {
	ID        string              `db:"id" json:"id"`
	Endpoint  string              `db:"endpoint" json:"endpoint"`
	P256dh    string              `db:"p256dh" json:"-"`
	Auth      string              `db:"auth" json:"-"`
	Interests dbtypes.StringSlice `db:"interests" json:"interests"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
}

func (s *Subscriber) Subscription() PushSubscription {
	return PushSubscription{Endpoint: s.Endpoint, Keys: PushKeys{P256dh: s.P256dh, Auth: s.Auth}}
}

// PushMessage is the JSON payload delivered to the service worker.
type PushMessage struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  PushMessageData `json:"data"`
}

type PushMessageData struct {
	URL    string   `json:"url"`
	BillID string   `json:"bill_id,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}
