package counters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "INV-000001", Format(PrefixInvoice, 1))
	require.Equal(t, "PAY-000123", Format(PrefixPayment, 123))
	require.Equal(t, "DEP-999999", Format(PrefixDepositRelease, 999999))

	// Past the padding width the number keeps growing instead of
	// truncating.
	require.Equal(t, "PR-1000000", Format(PrefixPayrollRun, 1000000))
}

func TestFormatSortsWithinPad(t *testing.T) {
	require.Less(t, Format(PrefixInvoice, 9), Format(PrefixInvoice, 10))
	require.Less(t, Format(PrefixInvoice, 99), Format(PrefixInvoice, 100))
}
