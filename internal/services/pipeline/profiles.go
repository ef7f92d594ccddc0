package pipeline

import (
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// fieldProfiles biases the extraction request per category. Hints only -
// the backend decides what it actually returns.
var fieldProfiles = map[models.Category][]string{
	models.CategoryInvoices:            {"Invoice Number", "Amount", "Date", "Vendor", "GST"},
	models.CategoryReceipts:            {"Receipt Number", "Amount", "Date", "Merchant", "Payment Method"},
	models.CategoryBankStatements:      {"Account Number", "Period", "Opening Balance", "Closing Balance", "Transaction Count"},
	models.CategoryTaxDocuments:        {"PAN", "Assessment Year", "Total Income", "Tax Payable", "Refund"},
	models.CategoryGSTDocuments:        {"GSTIN", "Period", "Taxable Value", "CGST", "SGST", "IGST"},
	models.CategoryIncomeDocuments:     {"Employer", "Period", "Gross Salary", "Net Salary", "Deductions"},
	models.CategoryFinancialStatements: {"Period", "Total Assets", "Total Liabilities", "Revenue", "Net Profit"},
}

// FieldProfile returns the extraction field hints for a category.
// General and unknown categories carry no profile.
func FieldProfile(category models.Category) []string {
	return fieldProfiles[category]
}
