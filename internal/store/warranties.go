package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"invcal/internal/coverage"
	"invcal/internal/model"
)

const warrantyColumns = `id, item_id, type, provider, start_date, end_date, extended, cost, notes, created_at, updated_at`

// CreateWarranty inserts w. The period must already be valid.
func (db *DB) CreateWarranty(ctx context.Context, w *model.Warranty) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := db.now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO warranties (`+warrantyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.ItemID, string(w.Type), w.Provider, encodeDate(w.Start), encodeDate(w.End),
		boolInt(w.Extended), w.Cost, w.Notes, encodeTime(now), encodeTime(now))
	if err != nil {
		return fmt.Errorf("create warranty: %w", err)
	}
	return nil
}

func (db *DB) GetWarranty(ctx context.Context, id uuid.UUID) (*model.Warranty, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+warrantyColumns+` FROM warranties WHERE id = ?`, id)
	w, err := db.scanWarranty(row)
	if err != nil {
		return nil, notFound(err, "get warranty "+id.String())
	}
	return w, nil
}

// ListWarranties returns every warranty ordered by end date.
func (db *DB) ListWarranties(ctx context.Context) ([]model.Warranty, error) {
	return db.queryWarranties(ctx, `SELECT `+warrantyColumns+` FROM warranties ORDER BY end_date, id`)
}

// WarrantiesForItem returns the warranties covering one item.
func (db *DB) WarrantiesForItem(ctx context.Context, itemID uuid.UUID) ([]model.Warranty, error) {
	return db.queryWarranties(ctx, `SELECT `+warrantyColumns+` FROM warranties WHERE item_id = ? ORDER BY end_date, id`, itemID)
}

// UpdateWarrantyEnd moves the end of a warranty, e.g. after a transfer.
func (db *DB) UpdateWarrantyEnd(ctx context.Context, w *model.Warranty) error {
	w.UpdatedAt = db.now().UTC()
	res, err := db.db.ExecContext(ctx, `UPDATE warranties SET end_date = ?, updated_at = ? WHERE id = ?`,
		encodeDate(w.End), encodeTime(w.UpdatedAt), w.ID)
	if err != nil {
		return fmt.Errorf("update warranty %s: %w", w.ID, err)
	}
	return affected(res, "update warranty "+w.ID.String())
}

func (db *DB) DeleteWarranty(ctx context.Context, id uuid.UUID) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM warranties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete warranty %s: %w", id, err)
	}
	return affected(res, "delete warranty "+id.String())
}

func (db *DB) queryWarranties(ctx context.Context, query string, args ...any) ([]model.Warranty, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list warranties: %w", err)
	}
	defer rows.Close()

	out := make([]model.Warranty, 0)
	for rows.Next() {
		w, err := db.scanWarranty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warranty: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (db *DB) scanWarranty(s scanner) (*model.Warranty, error) {
	var (
		w                model.Warranty
		typ              string
		start, end       string
		extended         int
		created, updated string
	)
	if err := s.Scan(&w.ID, &w.ItemID, &typ, &w.Provider, &start, &end, &extended, &w.Cost, &w.Notes, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if w.Start, err = db.decodeDate(start); err != nil {
		return nil, err
	}
	if w.End, err = db.decodeDate(end); err != nil {
		return nil, err
	}
	w.Type = coverage.WarrantyType(typ)
	w.Extended = extended != 0
	w.CreatedAt = decodeTime(created)
	w.UpdatedAt = decodeTime(updated)
	return &w, nil
}

// ─── Transfers ──────────────────────────────────────────────────────────────

const transferColumns = `id, warranty_id, date, kind, status, from_owner, to_owner, original_end, adjusted_end, fee, created_at`

// RecordTransfer stores t and moves the warranty's end to t.AdjustedEnd in
// one transaction.
func (db *DB) RecordTransfer(ctx context.Context, t *model.Transfer) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = db.now().UTC()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.WarrantyID, encodeDate(t.Date), string(t.Kind), string(t.Status), t.FromOwner, t.ToOwner,
		encodeDate(t.OriginalEnd), encodeDate(t.AdjustedEnd), t.Fee, encodeTime(t.CreatedAt)); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE warranties SET end_date = ?, updated_at = ? WHERE id = ?`,
		encodeDate(t.AdjustedEnd), encodeTime(t.CreatedAt), t.WarrantyID)
	if err != nil {
		return fmt.Errorf("update warranty end: %w", err)
	}
	if err := affected(res, "update warranty "+t.WarrantyID.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTransfers returns the transfers of a warranty, oldest first.
func (db *DB) ListTransfers(ctx context.Context, warrantyID uuid.UUID) ([]model.Transfer, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE warranty_id = ? ORDER BY date, created_at`, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	out := make([]model.Transfer, 0)
	for rows.Next() {
		var (
			t                     model.Transfer
			date, origEnd, adjEnd string
			kind, status, created string
		)
		if err := rows.Scan(&t.ID, &t.WarrantyID, &date, &kind, &status, &t.FromOwner, &t.ToOwner, &origEnd, &adjEnd, &t.Fee, &created); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.Date, err = db.decodeDate(date); err != nil {
			return nil, err
		}
		if t.OriginalEnd, err = db.decodeDate(origEnd); err != nil {
			return nil, err
		}
		if t.AdjustedEnd, err = db.decodeDate(adjEnd); err != nil {
			return nil, err
		}
		t.Kind = model.TransferKind(kind)
		t.Status = model.TransferStatus(status)
		t.CreatedAt = decodeTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}
