package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invcal/internal/calendar"
	"invcal/internal/coverage"
	"invcal/internal/model"
)

func day(y int, m time.Month, d int) calendar.Date { return calendar.MustNew(y, m, d) }

func fixture() ([]model.Warranty, map[string]string) {
	tv, fridge := uuid.New(), uuid.New()
	ws := []model.Warranty{
		{
			ID: uuid.New(), ItemID: tv, Type: coverage.Manufacturer, Provider: "Acme",
			Start: day(2024, time.January, 1), End: day(2024, time.December, 31),
			Cost: decimal.NewNullDecimal(decimal.RequireFromString("49.99")),
		},
		{
			ID: uuid.New(), ItemID: fridge, Type: coverage.Retailer, Provider: "BigBox",
			Start: day(2023, time.January, 1), End: day(2024, time.June, 1),
		},
		{
			ID: uuid.New(), ItemID: fridge, Type: coverage.Protection, Provider: "CarePlus",
			Start: day(2024, time.June, 1), End: day(2024, time.July, 15),
			Cost: decimal.NewNullDecimal(decimal.RequireFromString("10.01")),
		},
	}
	names := map[string]string{tv.String(): "Living room TV", fridge.String(): "Fridge"}
	return ws, names
}

func TestBuildWarranties(t *testing.T) {
	ws, names := fixture()
	rep := BuildWarranties(ws, names, day(2024, time.July, 1), 30)

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, 1, rep.Active)
	assert.Equal(t, 1, rep.ExpiringSoon)
	assert.Equal(t, 1, rep.Expired)
	assert.Equal(t, "60.00", rep.TotalCost.StringFixed(2))

	// soonest end first
	assert.Equal(t, "BigBox", rep.Rows[0].Provider)
	assert.Equal(t, "CarePlus", rep.Rows[1].Provider)
	assert.Equal(t, "Acme", rep.Rows[2].Provider)

	assert.Equal(t, coverage.Expired, rep.Rows[0].Status.State)
	assert.Equal(t, 100, rep.Rows[0].Progress)
	assert.Equal(t, 0, rep.Rows[0].DaysRemaining)

	assert.Equal(t, coverage.ExpiringSoon, rep.Rows[1].Status.State)
	assert.Equal(t, 14, rep.Rows[1].DaysRemaining)
	assert.Equal(t, "Fridge", rep.Rows[1].Item)
	assert.Equal(t, "Protection Plan", rep.Rows[1].Type)

	assert.Equal(t, coverage.Active, rep.Rows[2].Status.State)
	assert.Equal(t, 50, rep.Rows[2].Progress)
	assert.Equal(t, "Living room TV", rep.Rows[2].Item)
}

func TestRender(t *testing.T) {
	ws, names := fixture()
	rep := BuildWarranties(ws, names, day(2024, time.July, 1), 30)

	var buf bytes.Buffer
	require.NoError(t, rep.Render(&buf))
	html := buf.String()

	assert.Contains(t, html, `data-ready="true"`)
	assert.Contains(t, html, "Living room TV")
	assert.Contains(t, html, "Expiring in 14 days")
	assert.Contains(t, html, "2024-07-15")
	assert.Contains(t, html, "49.99")
	assert.Contains(t, html, "Total cost: 60.00")
	assert.NotContains(t, html, "No warranties recorded.")
}

func TestRenderEmpty(t *testing.T) {
	rep := BuildWarranties(nil, nil, day(2024, time.July, 1), 0)

	var buf bytes.Buffer
	require.NoError(t, rep.Render(&buf))
	assert.Contains(t, buf.String(), "No warranties recorded.")
	assert.Contains(t, buf.String(), "Active: 0")
}

func TestExportPDFRequiresURLAndPath(t *testing.T) {
	err := ExportPDF(context.Background(), PDFOptions{OutputPath: "/tmp/x.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL is required")

	err = ExportPDF(context.Background(), PDFOptions{URL: "http://127.0.0.1/report/warranties"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OutputPath is required")
}

func TestBasicAuthHeader(t *testing.T) {
	assert.Equal(t, "Basic dXNlcjpwYXNz", basicAuthHeader("user", "pass"))
}
