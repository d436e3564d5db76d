// Package analytics rolls the evaluated record set into the four KPI tables
// consumed by reporting.
//
// All aggregations are deterministic: groups are keyed by payment year and
// sorted ascending, records with an absent payment year are excluded from
// grouping (not coerced into a sentinel group), and monetary sums and means
// use banker's rounding at the configured precision. Empty groups produce
// empty tables, not errors.
package analytics

import (
	"sort"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/logger"

	"github.com/shopspring/decimal"
)

// Table names, also the keys of the export filename mapping
const (
	TableTotalShortage       = "total_shortage"
	TableAnnualShortages     = "annual_shortages"
	TableAgedShortagesByYear = "aged_shortages_by_year"
	TableAgedInvoicesByYear  = "aged_invoices_by_year"
)

// TotalShortage is the single-row overall shortage summary
type TotalShortage struct {
	ShortageCount int             `json:"shortage_count"`
	TotalShortage decimal.Decimal `json:"total_shortage_usd"`
}

// AnnualShortageRow summarizes shortages for one payment year
type AnnualShortageRow struct {
	PaymentYear   int             `json:"payment_year"`
	ShortageCount int             `json:"shortage_count"`
	TotalShortage decimal.Decimal `json:"total_shortage_usd"`
	MeanShortage  decimal.Decimal `json:"mean_shortage_usd"`
}

// AgedShortageRow summarizes aged shortages for one payment year
type AgedShortageRow struct {
	PaymentYear   int             `json:"payment_year"`
	ShortageCount int             `json:"shortage_count"`
	TotalShortage decimal.Decimal `json:"total_shortage_usd"`
}

// AgedInvoiceRow summarizes all aged invoices for one payment year
type AgedInvoiceRow struct {
	PaymentYear   int             `json:"payment_year"`
	InvoiceCount  int             `json:"invoice_count"`
	ShortageCount int             `json:"shortage_count"`
	TotalInvoice  decimal.Decimal `json:"total_invoice_usd"`
	TotalShortage decimal.Decimal `json:"total_shortage_usd"`
}

// Tables holds the four KPI tables computed from one evaluated record set
type Tables struct {
	TotalShortage       TotalShortage       `json:"total_shortage"`
	AnnualShortages     []AnnualShortageRow `json:"annual_shortages"`
	AgedShortagesByYear []AgedShortageRow   `json:"aged_shortages_by_year"`
	AgedInvoicesByYear  []AgedInvoiceRow    `json:"aged_invoices_by_year"`
}

// ComputeKPIs computes the four KPI tables from the evaluated record set
func ComputeKPIs(records models.RecordSet, settings *config.Settings) *Tables {
	log := logger.GetGlobalLogger().WithComponent("analytics")
	log.WithField("records", len(records)).Info("Computing analytics tables")

	places := settings.RoundDecimals
	shortages := records.Shortages()

	tables := &Tables{
		TotalShortage:       computeTotalShortage(shortages, places),
		AnnualShortages:     computeAnnualShortages(shortages, places),
		AgedShortagesByYear: computeAgedShortages(shortages.Aged(), places),
		AgedInvoicesByYear:  computeAgedInvoices(records.Aged(), places),
	}

	log.WithFields(logger.Fields{
		"shortage_count": tables.TotalShortage.ShortageCount,
		"annual_rows":    len(tables.AnnualShortages),
	}).Info("Computed 4 KPI tables")

	return tables
}

func computeTotalShortage(shortages models.RecordSet, places int) TotalShortage {
	total := decimal.Zero
	for _, record := range shortages {
		total = total.Add(record.ShortageAmount)
	}

	return TotalShortage{
		ShortageCount: len(shortages),
		TotalShortage: models.RoundMoney(total, places),
	}
}

func computeAnnualShortages(shortages models.RecordSet, places int) []AnnualShortageRow {
	groups := groupByYear(shortages)

	rows := make([]AnnualShortageRow, 0, len(groups))
	for _, year := range sortedYears(groups) {
		group := groups[year]

		total := decimal.Zero
		for _, record := range group {
			total = total.Add(record.ShortageAmount)
		}
		mean := total.Div(decimal.NewFromInt(int64(len(group))))

		rows = append(rows, AnnualShortageRow{
			PaymentYear:   year,
			ShortageCount: len(group),
			TotalShortage: models.RoundMoney(total, places),
			MeanShortage:  models.RoundMoney(mean, places),
		})
	}

	return rows
}

func computeAgedShortages(agedShortages models.RecordSet, places int) []AgedShortageRow {
	groups := groupByYear(agedShortages)

	rows := make([]AgedShortageRow, 0, len(groups))
	for _, year := range sortedYears(groups) {
		group := groups[year]

		total := decimal.Zero
		for _, record := range group {
			total = total.Add(record.ShortageAmount)
		}

		rows = append(rows, AgedShortageRow{
			PaymentYear:   year,
			ShortageCount: len(group),
			TotalShortage: models.RoundMoney(total, places),
		})
	}

	return rows
}

func computeAgedInvoices(aged models.RecordSet, places int) []AgedInvoiceRow {
	groups := groupByYear(aged)

	rows := make([]AgedInvoiceRow, 0, len(groups))
	for _, year := range sortedYears(groups) {
		group := groups[year]

		totalInvoice := decimal.Zero
		totalShortage := decimal.Zero
		shortageCount := 0
		for _, record := range group {
			totalInvoice = totalInvoice.Add(record.InvoiceAmount)
			totalShortage = totalShortage.Add(record.ShortageAmount)
			if record.ShortageFlag {
				shortageCount++
			}
		}

		rows = append(rows, AgedInvoiceRow{
			PaymentYear:   year,
			InvoiceCount:  len(group),
			ShortageCount: shortageCount,
			TotalInvoice:  models.RoundMoney(totalInvoice, places),
			TotalShortage: models.RoundMoney(totalShortage, places),
		})
	}

	return rows
}

// groupByYear buckets records by payment year, dropping records whose year
// could not be derived
func groupByYear(records models.RecordSet) map[int]models.RecordSet {
	groups := make(map[int]models.RecordSet)
	for _, record := range records {
		if !record.HasPaymentYear() {
			continue
		}
		groups[record.PaymentYear] = append(groups[record.PaymentYear], record)
	}
	return groups
}

func sortedYears(groups map[int]models.RecordSet) []int {
	years := make([]int, 0, len(groups))
	for year := range groups {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}
