package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"invcal/internal/daterange"
	"invcal/internal/model"
)

const itemColumns = `id, name, category, purchase_date, price, created_at, updated_at`

// CreateItem inserts it, assigning an ID when it has none.
func (db *DB) CreateItem(ctx context.Context, it *model.Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	now := db.now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Name, it.Category, encodeDatePtr(it.PurchaseDate), it.Price, encodeTime(now), encodeTime(now))
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// UpdateItem overwrites the mutable fields of an existing item.
func (db *DB) UpdateItem(ctx context.Context, it *model.Item) error {
	it.UpdatedAt = db.now().UTC()
	res, err := db.db.ExecContext(ctx, `
		UPDATE items SET name = ?, category = ?, purchase_date = ?, price = ?, updated_at = ?
		WHERE id = ?
	`, it.Name, it.Category, encodeDatePtr(it.PurchaseDate), it.Price, encodeTime(it.UpdatedAt), it.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	return affected(res, "update item "+it.ID.String())
}

func (db *DB) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := db.scanItem(row)
	if err != nil {
		return nil, notFound(err, "get item "+id.String())
	}
	return it, nil
}

// ListItems returns all items ordered by name.
func (db *DB) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		it, err := db.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ItemsPurchasedBetween lists the items bought inside q, inclusive. Items
// without a purchase date are never included.
func (db *DB) ItemsPurchasedBetween(ctx context.Context, q daterange.Query) ([]model.Item, error) {
	items, err := db.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return daterange.ItemsInRange(items, model.Item.Purchased, q), nil
}

func (db *DB) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return affected(res, "delete item "+id.String())
}

func (db *DB) scanItem(s scanner) (*model.Item, error) {
	var (
		it               model.Item
		purchase         sql.NullString
		created, updated string
	)
	if err := s.Scan(&it.ID, &it.Name, &it.Category, &purchase, &it.Price, &created, &updated); err != nil {
		return nil, err
	}
	pd, err := db.decodeDatePtr(purchase)
	if err != nil {
		return nil, err
	}
	it.PurchaseDate = pd
	it.CreatedAt = decodeTime(created)
	it.UpdatedAt = decodeTime(updated)
	return &it, nil
}
