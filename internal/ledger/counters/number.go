package counters

import "fmt"

// Document-number prefixes per producer document kind.
const (
	PrefixInvoice        = "INV"
	PrefixPayment        = "PAY"
	PrefixPayrollRun     = "PR"
	PrefixDepositRelease = "DEP"
)

// Format renders an allocated counter as a document number, zero-padded
// so numbers sort lexicographically up to a million documents.
func Format(prefix string, number int64) string {
	return fmt.Sprintf("%s-%06d", prefix, number)
}
