// Package transform derives the per-record fields that shortage evaluation
// needs: the invoice delta, child-invoice presence, and the payment year.
//
// The stage is a pure function over the record set: it returns enriched
// copies and leaves its input untouched. All defaults are explicit policy,
// not error recovery:
//   - missing amounts count as zero before subtraction, so the delta never
//     propagates an absent value
//   - an unparseable payment due date yields an absent payment year (0),
//     not an error
//
// The delta is rounded with banker's rounding (round half to even) to the
// configured precision; see models.RoundMoney.
package transform

import (
	"strings"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/logger"
)

// Apply enriches records with the derived transform fields and returns a new
// record set. The input set is not modified.
func Apply(records models.RecordSet, settings *config.Settings) models.RecordSet {
	log := logger.GetGlobalLogger().WithComponent("transform")
	log.WithField("records", len(records)).Info("Starting transformation step")

	out := make(models.RecordSet, 0, len(records))
	for _, record := range records {
		enriched := record.Clone()

		// Missing amounts default to zero. The zero value of
		// decimal.Decimal already is zero, so the subtraction below honors
		// the policy without a separate fill step.
		delta := enriched.InvoiceAmount.Sub(enriched.PaidAmount)
		enriched.Delta = models.RoundMoney(delta, settings.RoundDecimals)

		enriched.ChildInvoicePresent = strings.TrimSpace(enriched.ChildInvoiceID) != ""

		if enriched.PaymentDueDate.IsZero() {
			enriched.PaymentYear = 0
		} else {
			enriched.PaymentYear = enriched.PaymentDueDate.Year()
		}

		out = append(out, enriched)
	}

	log.WithField("records", len(out)).Info("Completed transformation")
	return out
}
