package coverage

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
)

// WarrantyType is the kind of contract behind a coverage period.
type WarrantyType string

const (
	Manufacturer WarrantyType = "manufacturer"
	Retailer     WarrantyType = "retailer"
	Extended     WarrantyType = "extended"
	Protection   WarrantyType = "protection"
	Service      WarrantyType = "service"
	Insurance    WarrantyType = "insurance"
)

var warrantyLabels = map[WarrantyType]string{
	Manufacturer: "Manufacturer Warranty",
	Retailer:     "Retailer Warranty",
	Extended:     "Extended Warranty",
	Protection:   "Protection Plan",
	Service:      "Service Contract",
	Insurance:    "Insurance",
}

// ParseWarrantyType is case-insensitive.
func ParseWarrantyType(s string) (WarrantyType, error) {
	t := WarrantyType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := warrantyLabels[t]; !ok {
		return "", &calendar.ValidationError{Type: "Warranty", Field: "Type", Reason: "unknown warranty type", Value: s}
	}
	return t, nil
}

func (t WarrantyType) Label() string {
	if l, ok := warrantyLabels[t]; ok {
		return l
	}
	return string(t)
}

// Conditions are the terms under which a warranty changes owner.
type Conditions struct {
	RequiresNotification bool            `json:"requires_notification"`
	NotificationDays     int             `json:"notification_days"`
	RequiresFee          bool            `json:"requires_fee"`
	Fee                  decimal.Decimal `json:"fee"`
	RequiresInspection   bool            `json:"requires_inspection"`
	ReducedCoverage      bool            `json:"reduced_coverage"`
	ReductionPercent     int             `json:"reduction_percent,omitempty"`
	Terms                string          `json:"terms,omitempty"`
}

// Policy converts the conditions into the reduction applied by
// AdjustedCoverage.
func (c Conditions) Policy() Policy {
	if c.ReducedCoverage && c.ReductionPercent > 0 {
		return PercentReduction(c.ReductionPercent)
	}
	return NoReduction()
}

var (
	manufacturerConditions = Conditions{
		RequiresNotification: true,
		NotificationDays:     30,
		ReducedCoverage:      true,
		ReductionPercent:     50,
		Terms:                "Warranty coverage limited to manufacturing defects only after transfer",
	}
	extendedConditions = Conditions{
		RequiresNotification: true,
		NotificationDays:     30,
		RequiresFee:          true,
		Fee:                  decimal.NewFromInt(50),
		Terms:                "Transfer fee required. Coverage continues as originally purchased.",
	}
	// HomeWarrantyConditions apply to warranties that transfer with a property sale.
	HomeWarrantyConditions = Conditions{
		RequiresNotification: true,
		NotificationDays:     7,
		RequiresFee:          true,
		Fee:                  decimal.NewFromInt(75),
		RequiresInspection:   true,
		Terms:                "Property inspection may be required. Coverage transfers with property sale.",
	}
	nonTransferableConditions = Conditions{
		ReducedCoverage:  true,
		ReductionPercent: 100,
		Terms:            "This warranty is non-transferable and void upon change of ownership",
	}
)

// DefaultConditions are the transfer terms by warranty type. A manufacturer
// warranty that has been extended follows the extended terms.
func DefaultConditions(t WarrantyType, extended bool) Conditions {
	switch t {
	case Manufacturer:
		if extended {
			return extendedConditions
		}
		return manufacturerConditions
	case Extended, Protection:
		return extendedConditions
	case Service:
		return Conditions{RequiresNotification: true, NotificationDays: 14, RequiresFee: true, Fee: decimal.NewFromInt(25)}
	case Insurance:
		return nonTransferableConditions
	default:
		return Conditions{RequiresNotification: true, NotificationDays: 7}
	}
}

// ProviderConditions returns terms published by well-known providers.
func ProviderConditions(provider string) (Conditions, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "apple", "applecare":
		return Conditions{Terms: "AppleCare+ transfers automatically with device ownership"}, true
	case "best buy", "geek squad":
		return Conditions{
			RequiresNotification: true,
			NotificationDays:     30,
			RequiresFee:          true,
			Fee:                  decimal.RequireFromString("49.99"),
			Terms:                "Protection plan transfers with proof of purchase and transfer fee",
		}, true
	case "squaretrade", "allstate":
		return Conditions{
			RequiresNotification: true,
			NotificationDays:     30,
			Terms:                "Plan transfers one time to new owner with item sale",
		}, true
	}
	return Conditions{}, false
}

// Transferability summarizes whether and how a warranty can change owner.
type Transferability struct {
	Transferable bool       `json:"transferable"`
	Conditions   Conditions `json:"conditions"`
	// RemainingTransfers is nil when unlimited.
	RemainingTransfers *int `json:"remaining_transfers,omitempty"`
}

// Assess picks provider terms when the provider is known, the type defaults
// otherwise. Insurance is never transferable. Plans that transfer without
// notice allow a single transfer.
func Assess(t WarrantyType, extended bool, provider string) Transferability {
	cond, ok := ProviderConditions(provider)
	if !ok {
		cond = DefaultConditions(t, extended)
	}
	out := Transferability{Transferable: t != Insurance, Conditions: cond}
	if !cond.RequiresNotification {
		one := 1
		out.RemainingTransfers = &one
	}
	return out
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type IssueCode string

const (
	IssueNonTransferable    IssueCode = "non_transferable"
	IssueExpired            IssueCode = "expired"
	IssueLimitReached       IssueCode = "transfer_limit_reached"
	IssueInsufficientNotice IssueCode = "insufficient_notice"
	IssueFeeRequired        IssueCode = "fee_required"
	IssueInspection         IssueCode = "inspection_required"
)

type Issue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
}

// TransferRequest is a proposed change of ownership.
type TransferRequest struct {
	Date calendar.Date       `json:"date"`
	Fee  decimal.NullDecimal `json:"fee"`
}

// Validation is the outcome of ValidateTransfer. Valid is false when any
// issue has error severity.
type Validation struct {
	Valid    bool    `json:"valid"`
	Issues   []Issue `json:"issues"`
	Adjusted Period  `json:"adjusted"`
}

// ValidateTransfer checks a proposed transfer of the warranty covering
// coverage, as seen at now, and computes the coverage the new owner keeps.
func ValidateTransfer(coverage Period, t Transferability, req TransferRequest, now calendar.Date) Validation {
	issues := make([]Issue, 0)
	add := func(sev Severity, code IssueCode, msg string) {
		issues = append(issues, Issue{Severity: sev, Code: code, Message: msg})
	}

	if !t.Transferable {
		add(SeverityError, IssueNonTransferable, "This warranty is non-transferable")
	}
	if StatusAt(coverage, now, 0).State == Expired {
		add(SeverityError, IssueExpired, "Cannot transfer an expired warranty")
	}
	if t.RemainingTransfers != nil && *t.RemainingTransfers <= 0 {
		add(SeverityError, IssueLimitReached, "Maximum number of transfers reached")
	}
	c := t.Conditions
	if c.RequiresNotification && calendar.Between(now, req.Date).Days < c.NotificationDays {
		add(SeverityWarning, IssueInsufficientNotice, fmt.Sprintf("Transfer requires %d days notice", c.NotificationDays))
	}
	if c.RequiresFee && !req.Fee.Valid {
		add(SeverityError, IssueFeeRequired, fmt.Sprintf("Transfer fee of %s required", c.Fee.StringFixed(2)))
	}
	if c.RequiresInspection {
		add(SeverityInfo, IssueInspection, "An inspection may be required before the transfer completes")
	}

	valid := true
	for _, is := range issues {
		if is.Severity == SeverityError {
			valid = false
			break
		}
	}
	return Validation{
		Valid:    valid,
		Issues:   issues,
		Adjusted: AdjustedCoverage(coverage, req.Date, c.Policy()),
	}
}
