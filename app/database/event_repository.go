package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ EventRepository = (*EventRepo)(nil)

type EventRepo struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) GetEvent(ctx context.Context, id string) (*Event, error) {
	var (
		e       Event
		members string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, canonical_article_id, member_article_ids, severity, impact,
		       event_type, created_at, updated_at
		FROM events WHERE id = ?
	`, id).Scan(&e.ID, &e.CanonicalArticleID, &members, &e.Severity, &e.Impact,
		&e.EventType, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if err := json.Unmarshal([]byte(members), &e.MemberArticleIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event members: %w", err)
	}

	return &e, nil
}

func (r *EventRepo) GetEventCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *EventRepo) UpsertEvent(ctx context.Context, e Event) error {
	members, err := json.Marshal(emptyIfNil(e.MemberArticleIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal event members: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, canonical_article_id, member_article_ids,
			severity, impact, event_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			member_article_ids = excluded.member_article_ids,
			severity = excluded.severity,
			impact = excluded.impact,
			event_type = excluded.event_type,
			updated_at = excluded.updated_at
	`, e.ID, e.CanonicalArticleID, string(members), e.Severity, e.Impact,
		e.EventType, createdAtOrNow(e.CreatedAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	return nil
}

// AddEventMember appends an article to an existing event. Events grow by
// single-link absorption only; members are never removed or merged away.
func (r *EventRepo) AddEventMember(ctx context.Context, eventID, articleID string) error {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("event %s not found", eventID)
	}

	for _, id := range event.MemberArticleIDs {
		if id == articleID {
			return nil
		}
	}

	event.MemberArticleIDs = append(event.MemberArticleIDs, articleID)
	return r.UpsertEvent(ctx, *event)
}
