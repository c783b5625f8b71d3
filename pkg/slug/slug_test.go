package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"Role-Playing & Adventure", "role-playing-and-adventure"},
		{"Pokémon Légendes", "pokemon-legendes"},
		{"Señor Straße", "senor-strasse"},
		{"Fighting+", "fighting-plus"},
		{"  Hello   World!  ", "hello-world"},
		{"--Action--", "action"},
		{"Halo 3: ODST", "halo-3-odst"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	for _, in := range []string{"Role-Playing & Adventure", "Pokémon Légendes", "Strategy"} {
		once := Generate(in)
		assert.Equal(t, once, Generate(once))
	}
}
