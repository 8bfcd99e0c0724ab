package store

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"

	dbtypes "github.com/nitesh/lega/internal/db"
	"github.com/nitesh/lega/pkg/models"
)

var billColumns = []string{
	"bill_id", "state", "title", "summary", "audio_url",
	"tags", "sector", "source_url", "created_at", "updated_at",
}

const insertBill = `
INSERT INTO bills (bill_id, state, title, summary, audio_url, tags, sector, source_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertBillIfAbsent = insertBill + `
ON CONFLICT (bill_id) DO NOTHING`

// created_at is left untouched on refresh.
const upsertBill = insertBill + `
ON CONFLICT (bill_id) DO UPDATE SET
 state = excluded.state,
 title = excluded.title,
 summary = excluded.summary,
 audio_url = excluded.audio_url,
 tags = excluded.tags,
 sector = excluded.sector,
 source_url = excluded.source_url,
 updated_at = excluded.updated_at`

// GetBill returns the stored bill or domain.ErrNotFound.
func (s *Store) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	query, args, err := s.sb.Select(billColumns...).From("bills").Where(sq.Eq{"bill_id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var b models.Bill
	if err := s.db.GetContext(ctx, &b, query, args...); err != nil {
		return nil, mapError(err, "get bill "+id)
	}
	return &b, nil
}

// InsertBill writes b unless a record with the same id exists. It reports
// false when another writer got there first; the existing row is untouched.
func (s *Store) InsertBill(ctx context.Context, b *models.Bill) (bool, error) {
	if err := b.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := s.now().UTC()
	created := now
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insertBillIfAbsent), billArgs(b, created, now)...)
	if err != nil {
		return false, mapError(err, "insert bill "+b.BillID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "insert bill "+b.BillID)
	}
	if n == 0 {
		return false, nil
	}
	b.CreatedAt, b.UpdatedAt = created, now
	return true, nil
}

// UpsertBill inserts b or replaces the generated fields of an existing
// record, keeping its created_at and bumping updated_at.
func (s *Store) UpsertBill(ctx context.Context, b *models.Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now().UTC()
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertBill), billArgs(b, created, now)...); err != nil {
		return mapError(err, "upsert bill "+b.BillID)
	}
	b.CreatedAt, b.UpdatedAt = created, now
	return nil
}

// ListBills returns bills matching f, most recently updated first.
func (s *Store) ListBills(ctx context.Context, f models.FeedFilter) ([]*models.Bill, error) {
	f = f.Normalize()

	q := s.sb.Select(billColumns...).
		From("bills").
		OrderBy("updated_at DESC", "bill_id ASC").
		Limit(uint64(f.Limit))
	if f.Sector != "" {
		q = q.Where(sq.Eq{"sector": string(f.Sector)})
	}
	if f.State != "" {
		q = q.Where(sq.Eq{"state": f.State})
	}
	if f.Tag != "" {
		q = q.Where(s.hasTag(f.Tag))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows := []*models.Bill{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, "list bills")
	}
	return rows, nil
}

func (s *Store) hasTag(tag string) sq.Sqlizer {
	if s.db.DriverName() == DriverPostgres {
		b, _ := json.Marshal([]string{tag})
		return sq.Expr("tags @> ?::jsonb", string(b))
	}
	return sq.Expr("EXISTS (SELECT 1 FROM json_each(bills.tags) WHERE json_each.value = ?)", tag)
}

func billArgs(b *models.Bill, created, updated time.Time) []any {
	tags := b.Tags
	if tags == nil {
		tags = dbtypes.StringSlice{}
	}
	state := b.State
	if state == "" {
		state = models.DefaultState
	}
	return []any{
		b.BillID,
		state,
		b.Title,
		b.Summary,
		b.AudioURL,
		tags,
		string(b.Sector),
		b.SourceURL,
		created,
		updated,
	}
}
