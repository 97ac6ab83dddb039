package mappings

import "time"

// Well-known mapping keys resolved from settings by the composer.
const (
	KeyAccountsReceivable = "ACCOUNTS_RECEIVABLE"
	KeyAccountsPayable    = "ACCOUNTS_PAYABLE"
	KeyRevenue            = "REVENUE"
	KeySalesTaxPayable    = "SALES_TAX_PAYABLE"
	KeyBank               = "BANK"
	KeyBankFees           = "BANK_FEES"
	KeyInterestIncome     = "INTEREST_INCOME"
	KeyPayrollExpense     = "PAYROLL_EXPENSE"
	KeyPayrollTaxPayable  = "PAYROLL_TAX_PAYABLE"
	KeyWagesPayable       = "WAGES_PAYABLE"
	KeyCustomerDeposits   = "CUSTOMER_DEPOSITS"
	KeyCorrections        = "CORRECTIONS"
)

// AccountMapping binds a named configuration key to a ledger account.
type AccountMapping struct {
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
