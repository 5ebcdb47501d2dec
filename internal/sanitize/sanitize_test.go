package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "handbook", "handbook"},
		{"uppercase", "Handbook", "handbook"},
		{"spaces and punctuation", "Employee Handbook (2024)", "employee_handbook_2024"},
		{"dashes and dots", "q3-report.v2", "q3_report_v2"},
		{"underscores collapse", "a__b___c", "a_b_c"},
		{"leading and trailing", "__doc__", "doc"},
		{"empty", "", DefaultIdentifier},
		{"only invalid", "!!!", DefaultIdentifier},
		{"unicode", "naïve", "na_ve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.input))
		})
	}
}

func TestIdentifier_Truncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	other := strings.Repeat("a", 99) + "b"

	got := Identifier(long)
	assert.Len(t, got, MaxIdentifierLength)
	assert.Equal(t, strings.Repeat("a", MaxIdentifierLength-HashSuffixLength), got[:MaxIdentifierLength-HashSuffixLength])
	assert.NotEqual(t, got, Identifier(other))
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "pdfqa_handbook", CollectionName("pdfqa", "handbook"))
	assert.Equal(t, "pdfqa_employee_handbook", CollectionName("pdfqa", "Employee Handbook"))
	assert.Equal(t, "pdfqa_document", CollectionName("pdfqa", ""))

	long := CollectionName("pdfqa", strings.Repeat("x", 80))
	assert.Len(t, long, MaxIdentifierLength)
	assert.True(t, strings.HasPrefix(long, "pdfqa_x"))
}
