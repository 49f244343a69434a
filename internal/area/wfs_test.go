package area

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCqlFilter(t *testing.T) {
	tests := []struct {
		comuna   string
		expected string
	}{
		{"San Joaquín", "strToUpperCase(COMUNA) LIKE '%SAN JOAQUIN%'"},
		{"Ñuñoa", "strToUpperCase(COMUNA) LIKE '%NUNOA%'"},
		{"Villa O'Higgins", "strToUpperCase(COMUNA) LIKE '%VILLA O''HIGGINS%'"},
	}
	for _, tt := range tests {
		t.Run(tt.comuna, func(t *testing.T) {
			assert.Equal(t, tt.expected, cqlFilter(tt.comuna))
		})
	}
}
