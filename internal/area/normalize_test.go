package area

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"San Joaquín", "SAN JOAQUIN"},
		{"san joaquin", "SAN JOAQUIN"},
		{"SAN JOAQUIN ", "SAN JOAQUIN"},
		{"  Ñuñoa  ", "NUNOA"},
		{"Viña del Mar", "VINA DEL MAR"},
		{"Concepción", "CONCEPCION"},
		{"María\tElena", "MARIA ELENA"},
		{"Camiña", "CAMINA"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_EquivalenceClass(t *testing.T) {
	variants := []string{"San Joaquín", "san joaquin", "SAN JOAQUIN ", "SaN jOaQuÍn"}
	want := Normalize(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, want, Normalize(v), "variant %q", v)
	}
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Ñuñoa", "NUNOA"))
	assert.True(t, SameName("Peñalolén", "penalolen"))
	assert.False(t, SameName("Santiago", "San Miguel"))
}
