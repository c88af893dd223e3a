package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invcal/internal/calendar"
	"invcal/internal/coverage"
	"invcal/internal/daterange"
	"invcal/internal/model"
	"invcal/internal/recurrence"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func datePtr(y int, m time.Month, d int) *calendar.Date {
	v := calendar.MustNew(y, m, d)
	return &v
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err, "migrations must be idempotent")
	require.NoError(t, db.Close())
}

func TestItems_CRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	it := &model.Item{
		Name:         "Dishwasher",
		Category:     "appliance",
		PurchaseDate: datePtr(2024, time.February, 29),
		Price:        decimal.NewNullDecimal(decimal.RequireFromString("649.99")),
	}
	require.NoError(t, db.CreateItem(ctx, it))
	require.NotEqual(t, uuid.Nil, it.ID)

	got, err := db.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher", got.Name)
	require.NotNil(t, got.PurchaseDate)
	assert.Equal(t, "2024-02-29", got.PurchaseDate.DateString())
	assert.True(t, got.Price.Valid)
	assert.Equal(t, "649.99", got.Price.Decimal.String())

	undated := &model.Item{Name: "Rug"}
	require.NoError(t, db.CreateItem(ctx, undated))
	got, err = db.GetItem(ctx, undated.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PurchaseDate)
	assert.False(t, got.Price.Valid)

	it.Name = "Quiet dishwasher"
	require.NoError(t, db.UpdateItem(ctx, it))
	got, err = db.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quiet dishwasher", got.Name)

	items, err := db.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, db.DeleteItem(ctx, it.ID))
	_, err = db.GetItem(ctx, it.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, db.DeleteItem(ctx, it.ID), ErrNotFound)
}

func TestItemsPurchasedBetween(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, it := range []*model.Item{
		{Name: "a", PurchaseDate: datePtr(2024, time.January, 1)},
		{Name: "b", PurchaseDate: datePtr(2024, time.January, 31)},
		{Name: "c", PurchaseDate: datePtr(2024, time.February, 1)},
		{Name: "d"},
	} {
		require.NoError(t, db.CreateItem(ctx, it))
	}

	got, err := db.ItemsPurchasedBetween(ctx, daterange.Query{
		Start: calendar.MustNew(2024, time.January, 1),
		End:   calendar.MustNew(2024, time.January, 31),
	})
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, it := range got {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	got, err = db.ItemsPurchasedBetween(ctx, daterange.Query{
		Start: calendar.MustNew(2024, time.February, 1),
		End:   calendar.MustNew(2024, time.January, 1),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWarrantiesAndTransfers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	item := &model.Item{Name: "Laptop"}
	require.NoError(t, db.CreateItem(ctx, item))

	w := &model.Warranty{
		ItemID:   item.ID,
		Type:     coverage.Manufacturer,
		Provider: "Acme",
		Start:    calendar.MustNew(2024, time.January, 1),
		End:      calendar.MustNew(2024, time.December, 31),
	}
	require.NoError(t, db.CreateWarranty(ctx, w))

	list, err := db.WarrantiesForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, coverage.Manufacturer, list[0].Type)
	assert.True(t, list[0].End.Equal(w.End))

	transferDate := calendar.MustNew(2024, time.February, 1)
	adjusted := coverage.AdjustedCoverage(w.Period(), transferDate, w.Transferability().Conditions.Policy())
	tr := &model.Transfer{
		WarrantyID:  w.ID,
		Date:        transferDate,
		Kind:        model.TransferSale,
		Status:      model.TransferCompleted,
		FromOwner:   "me",
		ToOwner:     "buyer",
		OriginalEnd: w.End,
		AdjustedEnd: adjusted.End,
	}
	require.NoError(t, db.RecordTransfer(ctx, tr))

	got, err := db.GetWarranty(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, adjusted.End.DateString(), got.End.DateString())

	transfers, err := db.ListTransfers(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, model.TransferSale, transfers[0].Kind)
	assert.False(t, transfers[0].Fee.Valid)

	bad := &model.Transfer{WarrantyID: uuid.New(), Date: transferDate, OriginalEnd: w.End, AdjustedEnd: w.End}
	assert.Error(t, db.RecordTransfer(ctx, bad))

	// Deleting the item cascades to its warranties.
	require.NoError(t, db.DeleteItem(ctx, item.ID))
	_, err = db.GetWarranty(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	r := &model.Reminder{
		Title:         "Replace HVAC filter",
		Anchor:        calendar.MustNew(2024, time.January, 31),
		Frequency:     recurrence.FreqQuarterly,
		Normalization: recurrence.EndOfMonth,
		DaysBefore:    []int{7, 1},
		Enabled:       true,
	}
	require.NoError(t, db.SaveReminder(ctx, r))

	got, err := db.GetReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 1}, got.DaysBefore)
	assert.Equal(t, recurrence.FreqQuarterly, got.Frequency)
	assert.Equal(t, "2024-04-30", got.NextDue(calendar.MustNew(2024, time.February, 1)).DateString())

	r.Enabled = false
	require.NoError(t, db.SaveReminder(ctx, r))
	enabled, err := db.ListReminders(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	imported := &model.Reminder{
		Title: "Gutter cleaning", Anchor: calendar.MustNew(2024, time.April, 1),
		Frequency: recurrence.FreqAnnual, Source: "service", ExternalUID: "uid-1", Enabled: true,
	}
	require.NoError(t, db.SaveReminder(ctx, imported))
	firstID := imported.ID

	again := &model.Reminder{
		Title: "Gutter cleaning (spring)", Anchor: calendar.MustNew(2024, time.April, 2),
		Frequency: recurrence.FreqAnnual, Source: "service", ExternalUID: "uid-1", Enabled: true,
	}
	require.NoError(t, db.SaveReminder(ctx, again))
	assert.Equal(t, firstID, again.ID)

	all, err := db.ListReminders(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteReminder(ctx, r.ID))
	assert.ErrorIs(t, db.DeleteReminder(ctx, r.ID), ErrNotFound)
}

func TestDecodeDate_RestoresLocation(t *testing.T) {
	db := newTestDB(t)
	seoul := time.FixedZone("KST", 9*3600)
	db.SetLocation(seoul)

	d, err := calendar.NewAt(2024, time.March, 1, calendar.Clock{Hour: 8}, seoul)
	require.NoError(t, err)
	back, err := db.decodeDate(encodeDate(d))
	require.NoError(t, err)
	assert.Equal(t, seoul, back.Location())
	assert.Equal(t, "2024-03-01", back.DateString())

	// A midnight UTC date must not slide to the previous day.
	db.SetLocation(time.FixedZone("EST", -5*3600))
	back, err = db.decodeDate(encodeDate(calendar.MustNew(2024, time.March, 1)))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", back.DateString())
}
