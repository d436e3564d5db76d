package analytics

import (
	"testing"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func shortageRecord(id string, year int, shortage string, aged bool) *models.InvoiceRecord {
	bucket := models.AgeBucketCurrent
	if aged {
		bucket = models.AgeBucketAged
	}
	return &models.InvoiceRecord{
		InvoiceID:      id,
		InvoiceAmount:  amount(shortage).Add(amount("100.00")),
		PaymentYear:    year,
		ShortageFlag:   true,
		ShortageAmount: amount(shortage),
		AgeBucket:      bucket,
	}
}

func TestComputeKPIsTotalShortage(t *testing.T) {
	records := models.RecordSet{
		shortageRecord("INV-001", 2023, "10.00", false),
		shortageRecord("INV-002", 2024, "15.50", true),
		{InvoiceID: "INV-003", InvoiceAmount: amount("50.00"), PaymentYear: 2024},
	}

	tables := ComputeKPIs(records, config.DefaultSettings())

	if tables.TotalShortage.ShortageCount != 2 {
		t.Errorf("ShortageCount = %d, want 2", tables.TotalShortage.ShortageCount)
	}
	if !tables.TotalShortage.TotalShortage.Equal(amount("25.50")) {
		t.Errorf("TotalShortage = %s, want 25.50", tables.TotalShortage.TotalShortage)
	}
}

func TestComputeKPIsAnnualShortages(t *testing.T) {
	records := models.RecordSet{
		shortageRecord("INV-001", 2024, "10.00", false),
		shortageRecord("INV-002", 2023, "20.00", false),
		shortageRecord("INV-003", 2024, "5.00", false),
	}

	tables := ComputeKPIs(records, config.DefaultSettings())

	rows := tables.AnnualShortages
	if len(rows) != 2 {
		t.Fatalf("AnnualShortages has %d rows, want 2", len(rows))
	}

	// Years sorted ascending
	if rows[0].PaymentYear != 2023 || rows[1].PaymentYear != 2024 {
		t.Errorf("years = [%d %d], want [2023 2024]", rows[0].PaymentYear, rows[1].PaymentYear)
	}

	if rows[0].ShortageCount != 1 || !rows[0].TotalShortage.Equal(amount("20.00")) {
		t.Errorf("2023 row = %+v, want count 1 total 20.00", rows[0])
	}
	if rows[1].ShortageCount != 2 || !rows[1].TotalShortage.Equal(amount("15.00")) {
		t.Errorf("2024 row = %+v, want count 2 total 15.00", rows[1])
	}
	if !rows[1].MeanShortage.Equal(amount("7.50")) {
		t.Errorf("2024 mean = %s, want 7.50", rows[1].MeanShortage)
	}
}

func TestComputeKPIsMeanUsesBankersRounding(t *testing.T) {
	// Two shortages summing to 0.25: mean 0.125 rounds half to even, 0.12
	records := models.RecordSet{
		shortageRecord("INV-001", 2024, "0.10", false),
		shortageRecord("INV-002", 2024, "0.15", false),
	}

	tables := ComputeKPIs(records, config.DefaultSettings())

	if len(tables.AnnualShortages) != 1 {
		t.Fatalf("AnnualShortages has %d rows, want 1", len(tables.AnnualShortages))
	}
	if !tables.AnnualShortages[0].MeanShortage.Equal(amount("0.12")) {
		t.Errorf("mean = %s, want 0.12 (half to even)", tables.AnnualShortages[0].MeanShortage)
	}
}

func TestComputeKPIsExcludesAbsentYears(t *testing.T) {
	// One shortage with a derivable year, one without
	withYear := shortageRecord("INV-001", 2024, "10.00", false)
	withoutYear := shortageRecord("INV-002", 0, "99.00", false)

	tables := ComputeKPIs(models.RecordSet{withYear, withoutYear}, config.DefaultSettings())

	// Absent year excluded from grouping but included in the overall total
	if len(tables.AnnualShortages) != 1 {
		t.Fatalf("AnnualShortages has %d rows, want 1", len(tables.AnnualShortages))
	}
	if tables.AnnualShortages[0].PaymentYear != 2024 {
		t.Errorf("PaymentYear = %d, want 2024", tables.AnnualShortages[0].PaymentYear)
	}
	if !tables.TotalShortage.TotalShortage.Equal(amount("109.00")) {
		t.Errorf("TotalShortage = %s, want 109.00 (overall total keeps yearless records)",
			tables.TotalShortage.TotalShortage)
	}
}

func TestComputeKPIsAgedTables(t *testing.T) {
	records := models.RecordSet{
		shortageRecord("INV-001", 2023, "10.00", true),
		shortageRecord("INV-002", 2023, "20.00", false),
		// Aged but not a shortage: appears in aged invoices only
		{
			InvoiceID:     "INV-003",
			InvoiceAmount: amount("200.00"),
			PaymentYear:   2023,
			AgeBucket:     models.AgeBucketAged,
		},
	}

	tables := ComputeKPIs(records, config.DefaultSettings())

	agedShortages := tables.AgedShortagesByYear
	if len(agedShortages) != 1 {
		t.Fatalf("AgedShortagesByYear has %d rows, want 1", len(agedShortages))
	}
	if agedShortages[0].ShortageCount != 1 || !agedShortages[0].TotalShortage.Equal(amount("10.00")) {
		t.Errorf("aged shortages row = %+v, want count 1 total 10.00", agedShortages[0])
	}

	agedInvoices := tables.AgedInvoicesByYear
	if len(agedInvoices) != 1 {
		t.Fatalf("AgedInvoicesByYear has %d rows, want 1", len(agedInvoices))
	}
	row := agedInvoices[0]
	if row.InvoiceCount != 2 {
		t.Errorf("InvoiceCount = %d, want 2", row.InvoiceCount)
	}
	if row.ShortageCount != 1 {
		t.Errorf("ShortageCount = %d, want 1", row.ShortageCount)
	}
	if !row.TotalInvoice.Equal(amount("310.00")) {
		t.Errorf("TotalInvoice = %s, want 310.00", row.TotalInvoice)
	}
	if !row.TotalShortage.Equal(amount("10.00")) {
		t.Errorf("TotalShortage = %s, want 10.00", row.TotalShortage)
	}
}

func TestComputeKPIsEmptyRecordSet(t *testing.T) {
	tables := ComputeKPIs(models.RecordSet{}, config.DefaultSettings())

	if tables.TotalShortage.ShortageCount != 0 || !tables.TotalShortage.TotalShortage.IsZero() {
		t.Errorf("TotalShortage = %+v, want zero summary", tables.TotalShortage)
	}
	if len(tables.AnnualShortages) != 0 {
		t.Errorf("AnnualShortages = %v, want empty", tables.AnnualShortages)
	}
	if len(tables.AgedShortagesByYear) != 0 {
		t.Errorf("AgedShortagesByYear = %v, want empty", tables.AgedShortagesByYear)
	}
	if len(tables.AgedInvoicesByYear) != 0 {
		t.Errorf("AgedInvoicesByYear = %v, want empty", tables.AgedInvoicesByYear)
	}
}
