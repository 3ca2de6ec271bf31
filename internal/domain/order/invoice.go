package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const invoiceLayout = "20060102-150405"

// NewInvoiceNumber returns a YYYYMMDD-HHMMSS invoice number for t with a short
// random suffix, so that orders placed within the same second stay unique.
func NewInvoiceNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
	return t.Format(invoiceLayout) + "-" + suffix
}
