package models

// Category is the closed-set classification label guiding extraction hints
type Category string

const (
	CategoryFinancialStatements Category = "Financial Statements"
	CategoryBankStatements      Category = "Bank Statements"
	CategoryTaxDocuments        Category = "Tax Documents"
	CategoryGSTDocuments        Category = "GST Documents"
	CategoryIncomeDocuments     Category = "Income Documents"
	CategoryInvoices            Category = "Invoices"
	CategoryReceipts            Category = "Receipts"
	CategoryGeneral             Category = "General"
)

// AllCategories returns the closed set of valid categories
func AllCategories() []Category {
	return []Category{
		CategoryFinancialStatements,
		CategoryBankStatements,
		CategoryTaxDocuments,
		CategoryGSTDocuments,
		CategoryIncomeDocuments,
		CategoryInvoices,
		CategoryReceipts,
		CategoryGeneral,
	}
}

// IsValid reports whether c is a member of the closed category set
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}
