package store

import (
	"context"
	"fmt"
	"time"
)

// AcquiredItem is one row of the acquisition ledger: a resource the
// operational expert instructed the user to obtain.
type AcquiredItem struct {
	ID        int64     `json:"id"`
	Item      string    `json:"item"`
	Source    string    `json:"source"`
	Context   string    `json:"context"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddAcquiredItem appends a ledger row.
func (s *Store) AddAcquiredItem(ctx context.Context, item, source, context_ string) (*AcquiredItem, error) {
	if source == "" {
		source = "operational"
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO acquired_items (item, source, context)
		 VALUES ($1, $2, $3)
		 RETURNING id, item, source, context, created_at`,
		item, source, context_)

	var a AcquiredItem
	if err := row.Scan(&a.ID, &a.Item, &a.Source, &a.Context, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert acquired item: %w", err)
	}
	return &a, nil
}

// ListAcquiredItems returns the ledger, newest first.
func (s *Store) ListAcquiredItems(ctx context.Context) ([]*AcquiredItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, item, source, context, created_at FROM acquired_items
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query acquired items: %w", err)
	}
	defer rows.Close()

	var items []*AcquiredItem
	for rows.Next() {
		var a AcquiredItem
		if err := rows.Scan(&a.ID, &a.Item, &a.Source, &a.Context, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan acquired item: %w", err)
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// DeleteAcquiredItem removes one ledger row.
func (s *Store) DeleteAcquiredItem(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM acquired_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete acquired item: %w", err)
	}
	return nil
}
