package ingest

import (
	"fmt"
	"strings"
)

// Canonical column names of the invoice CSV exports
const (
	ColMarketplace      = "Marketplace"
	ColInvoiceDate      = "Invoice Date"
	ColPaymentDueDate   = "Payment Due Date"
	ColInvoiceStatus    = "Invoice Status"
	ColPaidAmount       = "Actual Paid Amount"
	ColPaidCurrency     = "Paid Amount Currency"
	ColPayee            = "Payee"
	ColCreationDate     = "Invoice Creation Date"
	ColInvoiceID        = "Randomized Invoice"
	ColInvoiceAmount    = "Invoice Amount"
	ColInvoiceCurrency  = "Invoice Currency"
	ColAnyDeductions    = "Any Deductions"
	ColQuantityVariance = "Quantity Variance Amount"
	ColPriceVariance    = "Price Variance Amount"
	ColQuickPayDiscount = "Quick Pay Discount Amount"
	ColChildInvoiceID   = "Randomized Latest Child Invoice"
	ColPONumber         = "Randomized PO"
)

// RequiredColumns must be present in every input file
var RequiredColumns = []string{
	ColInvoiceDate,
	ColPaymentDueDate,
	ColInvoiceStatus,
	ColPaidAmount,
	ColPaidCurrency,
	ColCreationDate,
	ColInvoiceID,
	ColInvoiceAmount,
	ColInvoiceCurrency,
	ColAnyDeductions,
	ColPONumber,
}

// OptionalColumns are filled with empty values when absent
var OptionalColumns = []string{
	ColMarketplace,
	ColPayee,
	ColQuantityVariance,
	ColPriceVariance,
	ColQuickPayDiscount,
	ColChildInvoiceID,
}

// FileConfig holds configuration for parsing invoice CSV files
type FileConfig struct {
	HasHeader     bool              `json:"has_header"`
	Delimiter     rune              `json:"delimiter"`
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`
	MaxFieldSize  int               `json:"max_field_size,omitempty"`
}

// DefaultFileConfig returns a configuration with standard defaults,
// including aliases for common header variations seen in exports
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		HasHeader:    true,
		Delimiter:    ',',
		MaxFieldSize: 1000000,
		ColumnAliases: map[string]string{
			"invoice":              ColInvoiceID,
			"invoice_id":           ColInvoiceID,
			"invoice number":       ColInvoiceID,
			"po":                   ColPONumber,
			"po_number":            ColPONumber,
			"status":               ColInvoiceStatus,
			"amount":               ColInvoiceAmount,
			"paid":                 ColPaidAmount,
			"paid_amount":          ColPaidAmount,
			"currency":             ColInvoiceCurrency,
			"due_date":             ColPaymentDueDate,
			"due date":             ColPaymentDueDate,
			"deductions":           ColAnyDeductions,
			"child_invoice":        ColChildInvoiceID,
			"child invoice":        ColChildInvoiceID,
			"latest child invoice": ColChildInvoiceID,
		},
	}
}

// Validate checks if the file configuration is valid
func (fc *FileConfig) Validate() error {
	if fc.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}

	if fc.MaxFieldSize < 0 {
		return fmt.Errorf("max field size cannot be negative")
	}

	return nil
}

// Resolve maps a raw header to its canonical column name. Headers match
// canonically first, then via aliases, both case-insensitively.
func (fc *FileConfig) Resolve(header string) string {
	header = strings.TrimSpace(header)

	for _, canonical := range append(RequiredColumns, OptionalColumns...) {
		if strings.EqualFold(header, canonical) {
			return canonical
		}
	}

	lower := strings.ToLower(header)
	if canonical, ok := fc.ColumnAliases[lower]; ok {
		return canonical
	}

	return header
}
