package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"invcal/internal/model"
	"invcal/internal/recurrence"
)

const reminderColumns = `id, item_id, title, notes, anchor, frequency, normalization, days_before, enabled, source, external_uid, created_at, updated_at`

// SaveReminder inserts r or, when a reminder with the same ID exists,
// replaces it. Imported reminders (Source set) are matched on
// (Source, ExternalUID) instead so re-importing a feed updates in place.
func (db *DB) SaveReminder(ctx context.Context, r *model.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Source != "" {
		var existing uuid.UUID
		err := db.db.QueryRowContext(ctx, `SELECT id FROM reminders WHERE source = ? AND external_uid = ?`, r.Source, r.ExternalUID).Scan(&existing)
		if err == nil {
			r.ID = existing
		}
	}
	now := db.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.DaysBefore == nil {
		r.DaysBefore = []int{}
	}
	daysBefore, err := json.Marshal(r.DaysBefore)
	if err != nil {
		return fmt.Errorf("encode days_before: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_id       = excluded.item_id,
			title         = excluded.title,
			notes         = excluded.notes,
			anchor        = excluded.anchor,
			frequency     = excluded.frequency,
			normalization = excluded.normalization,
			days_before   = excluded.days_before,
			enabled       = excluded.enabled,
			updated_at    = excluded.updated_at
	`, r.ID, r.ItemID, r.Title, r.Notes, encodeDate(r.Anchor), string(r.Frequency), string(r.Normalization),
		string(daysBefore), boolInt(r.Enabled), r.Source, r.ExternalUID, encodeTime(r.CreatedAt), encodeTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

func (db *DB) GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := db.scanReminder(row)
	if err != nil {
		return nil, notFound(err, "get reminder "+id.String())
	}
	return r, nil
}

// ListReminders returns reminders ordered by title. When enabledOnly is set
// disabled reminders are skipped.
func (db *DB) ListReminders(ctx context.Context, enabledOnly bool) ([]model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY title, id`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reminder, 0)
	for rows.Next() {
		r, err := db.scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (db *DB) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %s: %w", id, err)
	}
	return affected(res, "delete reminder "+id.String())
}

func (db *DB) scanReminder(s scanner) (*model.Reminder, error) {
	var (
		r                  model.Reminder
		anchor, freq, norm string
		daysBefore         string
		enabled            int
		created, updated   string
	)
	if err := s.Scan(&r.ID, &r.ItemID, &r.Title, &r.Notes, &anchor, &freq, &norm, &daysBefore, &enabled,
		&r.Source, &r.ExternalUID, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if r.Anchor, err = db.decodeDate(anchor); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(daysBefore), &r.DaysBefore); err != nil {
		return nil, fmt.Errorf("decode days_before: %w", err)
	}
	r.Frequency = recurrence.Frequency(freq)
	r.Normalization = recurrence.Normalization(norm)
	r.Enabled = enabled != 0
	r.CreatedAt = decodeTime(created)
	r.UpdatedAt = decodeTime(updated)
	return &r, nil
}
