// Package model holds the persisted records of the inventory: items, their
// warranties and ownership transfers, maintenance reminders, and the
// occurrences expanded from subscribed service calendars.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
	"invcal/internal/coverage"
	"invcal/internal/recurrence"
)

// Item is a household possession.
type Item struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category,omitempty"`

	// PurchaseDate is nil when unknown; it is never stored as a zero date.
	PurchaseDate *calendar.Date     `json:"purchase_date,omitempty"`
	Price        decimal.NullDecimal `json:"price"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchased adapts Item to daterange.ItemsInRange.
func (i Item) Purchased() (calendar.Date, bool) {
	if i.PurchaseDate == nil {
		return calendar.Date{}, false
	}
	return *i.PurchaseDate, true
}

// Value is the price, or zero when unknown.
func (i Item) Value() decimal.Decimal {
	if !i.Price.Valid {
		return decimal.Zero
	}
	return i.Price.Decimal
}

// Warranty covers one item for a period.
type Warranty struct {
	ID       uuid.UUID             `json:"id"`
	ItemID   uuid.UUID             `json:"item_id"`
	Type     coverage.WarrantyType `json:"type"`
	Provider string                `json:"provider"`
	Start    calendar.Date         `json:"start"`
	End      calendar.Date         `json:"end"`
	Extended bool                  `json:"extended"`
	Cost     decimal.NullDecimal   `json:"cost"`
	Notes    string                `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w Warranty) Period() coverage.Period {
	return coverage.Period{Start: w.Start, End: w.End}
}

// Transferability applies provider terms first, then the type defaults.
func (w Warranty) Transferability() coverage.Transferability {
	return coverage.Assess(w.Type, w.Extended, w.Provider)
}

type TransferKind string

const (
	TransferSale        TransferKind = "sale"
	TransferGift        TransferKind = "gift"
	TransferInheritance TransferKind = "inheritance"
	TransferTrade       TransferKind = "trade"
	TransferOther       TransferKind = "other"
)

type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferInProgress TransferStatus = "in_progress"
	TransferCompleted  TransferStatus = "completed"
	TransferRejected   TransferStatus = "rejected"
	TransferCancelled  TransferStatus = "cancelled"
)

// Transfer records a change of ownership of a warranty and the coverage the
// new owner keeps.
type Transfer struct {
	ID         uuid.UUID      `json:"id"`
	WarrantyID uuid.UUID      `json:"warranty_id"`
	Date       calendar.Date  `json:"date"`
	Kind       TransferKind   `json:"kind"`
	Status     TransferStatus `json:"status"`
	FromOwner  string         `json:"from_owner"`
	ToOwner    string         `json:"to_owner"`

	OriginalEnd calendar.Date       `json:"original_end"`
	AdjustedEnd calendar.Date       `json:"adjusted_end"`
	Fee         decimal.NullDecimal `json:"fee"`

	CreatedAt time.Time `json:"created_at"`
}

// Reminder is a recurring maintenance task.
type Reminder struct {
	ID     uuid.UUID     `json:"id"`
	ItemID uuid.NullUUID `json:"item_id"`
	Title  string        `json:"title"`
	Notes  string        `json:"notes,omitempty"`

	Anchor        calendar.Date            `json:"anchor"`
	Frequency     recurrence.Frequency     `json:"frequency"`
	Normalization recurrence.Normalization `json:"normalization"`

	// DaysBefore lists how many days ahead of each occurrence to notify.
	DaysBefore []int `json:"days_before"`
	Enabled    bool  `json:"enabled"`

	// Source is empty for reminders created locally and the feed ID for
	// reminders imported from a service calendar; ExternalUID is the
	// calendar UID in that case.
	Source      string `json:"source,omitempty"`
	ExternalUID string `json:"external_uid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Reminder) Rule() recurrence.Rule {
	return r.Frequency.Rule(r.Normalization)
}

// NextDue is the first occurrence on or after now.
func (r Reminder) NextDue(now calendar.Date) calendar.Date {
	return recurrence.FirstOnOrAfter(r.Anchor, r.Rule(), now)
}

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string `json:"instance_key"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay bool `json:"all_day"`

	// Start / End are in the configured display timezone.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
