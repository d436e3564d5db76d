// Package models defines the invoice record model shared by every pipeline
// stage.
//
// An InvoiceRecord is one row of invoice data with a fixed field set: the raw
// attributes coming out of ingestion plus the derived attributes filled in by
// the transform and shortage-evaluation stages. A RecordSet is an ordered
// sequence of records; stages copy records forward and never mutate their
// input, so a RecordSet is immutable once a stage has produced it.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AgeBucket classifies an invoice by how far past due it is
type AgeBucket string

const (
	// AgeBucketCurrent marks invoices within the aging threshold
	AgeBucketCurrent AgeBucket = "Current"
	// AgeBucketAged marks invoices past due beyond the aging threshold
	AgeBucketAged AgeBucket = "Aged"
)

// String returns the string representation of AgeBucket
func (b AgeBucket) String() string {
	return string(b)
}

// IsValid checks if the age bucket is a known value
func (b AgeBucket) IsValid() bool {
	return b == AgeBucketCurrent || b == AgeBucketAged
}

// InvoiceRecord represents one invoice row flowing through the pipeline.
//
// Date fields use the zero time.Time to represent an unparseable or absent
// value; PaymentYear uses 0 the same way (no real invoice year is 0).
type InvoiceRecord struct {
	// Raw attributes (populated by ingestion)
	InvoiceID        string          `json:"invoice_id" csv:"Randomized Invoice"`
	PONumber         string          `json:"po_number" csv:"Randomized PO"`
	Marketplace      string          `json:"marketplace" csv:"Marketplace"`
	Payee            string          `json:"payee" csv:"Payee"`
	InvoiceStatus    string          `json:"invoice_status" csv:"Invoice Status"`
	InvoiceAmount    decimal.Decimal `json:"invoice_amount" csv:"Invoice Amount"`
	PaidAmount       decimal.Decimal `json:"actual_paid_amount" csv:"Actual Paid Amount"`
	InvoiceCurrency  string          `json:"invoice_currency" csv:"Invoice Currency"`
	PaidCurrency     string          `json:"paid_amount_currency" csv:"Paid Amount Currency"`
	AnyDeductions    bool            `json:"any_deductions" csv:"Any Deductions"`
	ChildInvoiceID   string          `json:"child_invoice_id" csv:"Randomized Latest Child Invoice"`
	QuantityVariance decimal.Decimal `json:"quantity_variance_amount" csv:"Quantity Variance Amount"`
	PriceVariance    decimal.Decimal `json:"price_variance_amount" csv:"Price Variance Amount"`
	QuickPayDiscount decimal.Decimal `json:"quick_pay_discount_amount" csv:"Quick Pay Discount Amount"`
	InvoiceDate      time.Time       `json:"invoice_date" csv:"Invoice Date"`
	PaymentDueDate   time.Time       `json:"payment_due_date" csv:"Payment Due Date"`
	CreationDate     time.Time       `json:"invoice_creation_date" csv:"Invoice Creation Date"`
	SourceFile       string          `json:"source_file" csv:"Source_File"`

	// Derived attributes (populated by transform and evaluation)
	Delta               decimal.Decimal `json:"invoice_delta"`
	ChildInvoicePresent bool            `json:"child_invoice_present"`
	PaymentYear         int             `json:"payment_year"`
	ShortageFlag        bool            `json:"shortage_flag"`
	ShortageAmount      decimal.Decimal `json:"shortage_amount"`
	DaysPastDue         int             `json:"days_past_due"`
	AgeBucket           AgeBucket       `json:"age_bucket"`
}

// Clone returns a copy of the record. Decimal values are immutable, so a
// shallow copy is a full copy.
func (r *InvoiceRecord) Clone() *InvoiceRecord {
	clone := *r
	return &clone
}

// Validate performs basic validation on the raw invoice attributes.
// Derived-field invariants are the quality validator's job.
func (r *InvoiceRecord) Validate() error {
	if strings.TrimSpace(r.InvoiceID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if strings.TrimSpace(r.InvoiceStatus) == "" {
		return fmt.Errorf("invoice status cannot be empty")
	}

	if r.InvoiceAmount.IsNegative() {
		return fmt.Errorf("invoice amount cannot be negative: %s", r.InvoiceAmount)
	}

	if r.PaidAmount.IsNegative() {
		return fmt.Errorf("actual paid amount cannot be negative: %s", r.PaidAmount)
	}

	if strings.TrimSpace(r.InvoiceCurrency) == "" {
		return fmt.Errorf("invoice currency cannot be empty")
	}

	if strings.TrimSpace(r.PaidCurrency) == "" {
		return fmt.Errorf("paid amount currency cannot be empty")
	}

	return nil
}

// HasPaymentYear reports whether the payment year could be derived
func (r *InvoiceRecord) HasPaymentYear() bool {
	return r.PaymentYear != 0
}

// IsAged reports whether the record landed in the Aged bucket
func (r *InvoiceRecord) IsAged() bool {
	return r.AgeBucket == AgeBucketAged
}

// String returns a short string representation of the record
func (r *InvoiceRecord) String() string {
	return fmt.Sprintf("InvoiceRecord{ID: %s, Amount: %s, Paid: %s, Status: %s, Shortage: %t}",
		r.InvoiceID, r.InvoiceAmount.String(), r.PaidAmount.String(), r.InvoiceStatus, r.ShortageFlag)
}

// Equals compares two records field by field. Used by tests to assert
// stage idempotence.
func (r *InvoiceRecord) Equals(other *InvoiceRecord) bool {
	if other == nil {
		return false
	}

	return r.InvoiceID == other.InvoiceID &&
		r.PONumber == other.PONumber &&
		r.Marketplace == other.Marketplace &&
		r.Payee == other.Payee &&
		r.InvoiceStatus == other.InvoiceStatus &&
		r.InvoiceAmount.Equal(other.InvoiceAmount) &&
		r.PaidAmount.Equal(other.PaidAmount) &&
		r.InvoiceCurrency == other.InvoiceCurrency &&
		r.PaidCurrency == other.PaidCurrency &&
		r.AnyDeductions == other.AnyDeductions &&
		r.ChildInvoiceID == other.ChildInvoiceID &&
		r.InvoiceDate.Equal(other.InvoiceDate) &&
		r.PaymentDueDate.Equal(other.PaymentDueDate) &&
		r.CreationDate.Equal(other.CreationDate) &&
		r.SourceFile == other.SourceFile &&
		r.Delta.Equal(other.Delta) &&
		r.ChildInvoicePresent == other.ChildInvoicePresent &&
		r.PaymentYear == other.PaymentYear &&
		r.ShortageFlag == other.ShortageFlag &&
		r.ShortageAmount.Equal(other.ShortageAmount) &&
		r.DaysPastDue == other.DaysPastDue &&
		r.AgeBucket == other.AgeBucket
}

// RecordSet is an ordered sequence of invoice records
type RecordSet []*InvoiceRecord

// Shortages returns the subset of records flagged as shortages, preserving order
func (rs RecordSet) Shortages() RecordSet {
	var out RecordSet
	for _, r := range rs {
		if r.ShortageFlag {
			out = append(out, r)
		}
	}
	return out
}

// Aged returns the subset of records in the Aged bucket, preserving order
func (rs RecordSet) Aged() RecordSet {
	var out RecordSet
	for _, r := range rs {
		if r.IsAged() {
			out = append(out, r)
		}
	}
	return out
}
