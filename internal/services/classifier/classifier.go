// -----------------------------------------------------------------------
// Category Classifier - Pure filename-based category inference
// -----------------------------------------------------------------------

package classifier

import (
	"strings"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// rule maps filename substrings to a category. First match wins.
type rule struct {
	keywords []string
	category models.Category
}

// rules is ordered and fixed. Order must be preserved so identical
// filenames always classify identically.
var rules = []rule{
	{[]string{"invoice", "bill"}, models.CategoryInvoices},
	{[]string{"receipt"}, models.CategoryReceipts},
	{[]string{"gst"}, models.CategoryGSTDocuments},
	{[]string{"tax", "itr"}, models.CategoryTaxDocuments},
	{[]string{"balance sheet", "balance_sheet", "p&l", "profit"}, models.CategoryFinancialStatements},
	{[]string{"bank", "statement"}, models.CategoryBankStatements},
	{[]string{"salary", "payslip", "income"}, models.CategoryIncomeDocuments},
}

// Classify infers a category from the filename. Pure and deterministic:
// ordered case-insensitive substring rules, first match wins, falling back
// to General. No I/O.
func Classify(fileName string) models.Category {
	name := strings.ToLower(fileName)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.category
			}
		}
	}
	return models.CategoryGeneral
}
