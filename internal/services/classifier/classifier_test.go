package classifier

import (
	"testing"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		fileName string
		want     models.Category
	}{
		{"ABC Invoice Jan.pdf", models.CategoryInvoices},
		{"electricity-bill-march.pdf", models.CategoryInvoices},
		{"Receipt_2025_08.png", models.CategoryReceipts},
		{"GSTR3B-July.pdf", models.CategoryGSTDocuments},
		{"ITR-V 2024.pdf", models.CategoryTaxDocuments},
		{"advance tax challan.pdf", models.CategoryTaxDocuments},
		{"Balance Sheet FY24.xlsx", models.CategoryFinancialStatements},
		{"profit-and-loss-q1.pdf", models.CategoryFinancialStatements},
		{"HDFC Bank Statement June.pdf", models.CategoryBankStatements},
		{"statement_of_account.csv", models.CategoryBankStatements},
		{"payslip-august.pdf", models.CategoryIncomeDocuments},
		{"Salary Slip.pdf", models.CategoryIncomeDocuments},
		{"holiday-photos.zip", models.CategoryGeneral},
		{"", models.CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := Classify(tt.fileName); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

// Rule precedence: invoice beats statement, gst beats tax.
func TestClassify_RuleOrder(t *testing.T) {
	if got := Classify("invoice statement.pdf"); got != models.CategoryInvoices {
		t.Errorf("invoice rule must win over statement, got %q", got)
	}
	if got := Classify("gst tax summary.pdf"); got != models.CategoryGSTDocuments {
		t.Errorf("gst rule must win over tax, got %q", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify("Mixed Invoice Receipt.pdf")
	for i := 0; i < 100; i++ {
		if got := Classify("Mixed Invoice Receipt.pdf"); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
}
