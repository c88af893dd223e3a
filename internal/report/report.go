// Package report builds the warranty overview and renders it as HTML, and
// prints that page to PDF through headless Chromium.
package report

import (
	"embed"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
	"invcal/internal/coverage"
	"invcal/internal/model"
)

// Row is one warranty line of the report.
type Row struct {
	WarrantyID    string          `json:"warranty_id"`
	Item          string          `json:"item"`
	Provider      string          `json:"provider"`
	Type          string          `json:"type"`
	Start         calendar.Date   `json:"start"`
	End           calendar.Date   `json:"end"`
	Status        coverage.Status `json:"status"`
	DaysRemaining int             `json:"days_remaining"`
	// Progress is the elapsed share of the coverage, 0..100.
	Progress     int                 `json:"progress"`
	Transferable bool                `json:"transferable"`
	Cost         decimal.NullDecimal `json:"cost"`
}

// Warranties is the data behind the warranty report.
type Warranties struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        []Row     `json:"rows"`

	Active       int             `json:"active"`
	ExpiringSoon int             `json:"expiring_soon"`
	Expired      int             `json:"expired"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// BuildWarranties classifies every warranty at now. Rows are ordered by end
// date, soonest first. itemNames maps item IDs to names.
func BuildWarranties(warranties []model.Warranty, itemNames map[string]string, now calendar.Date, soonDays int) Warranties {
	rep := Warranties{
		Title:       "Warranty overview",
		GeneratedAt: now.Time(),
		Rows:        make([]Row, 0, len(warranties)),
		TotalCost:   decimal.Zero,
	}

	for _, w := range warranties {
		p := w.Period()
		st := coverage.StatusAt(p, now, soonDays)
		switch st.State {
		case coverage.Active:
			rep.Active++
		case coverage.ExpiringSoon:
			rep.ExpiringSoon++
		case coverage.Expired:
			rep.Expired++
		}
		if w.Cost.Valid {
			rep.TotalCost = rep.TotalCost.Add(w.Cost.Decimal)
		}

		rep.Rows = append(rep.Rows, Row{
			WarrantyID:    w.ID.String(),
			Item:          itemNames[w.ItemID.String()],
			Provider:      w.Provider,
			Type:          w.Type.Label(),
			Start:         w.Start,
			End:           w.End,
			Status:        st,
			DaysRemaining: coverage.DaysRemaining(p, now),
			Progress:      int(coverage.Progress(p, now)*100 + 0.5),
			Transferable:  w.Transferability().Transferable,
			Cost:          w.Cost,
		})
	}

	sort.SliceStable(rep.Rows, func(i, j int) bool {
		return rep.Rows[i].End.Before(rep.Rows[j].End)
	})
	return rep
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"date": func(d calendar.Date) string { return d.DateString() },
	"money": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return ""
		}
		return d.Decimal.StringFixed(2)
	},
}).ParseFS(templateFS, "templates/*.html"))

// Render writes the report page. The root element carries data-ready="true"
// once the content is in place; ExportPDF waits for it.
func (w Warranties) Render(out io.Writer) error {
	return templates.ExecuteTemplate(out, "warranties.html", w)
}
