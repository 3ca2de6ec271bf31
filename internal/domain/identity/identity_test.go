package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDNI(t *testing.T) {
	tests := []struct {
		dni   string
		valid bool
	}{
		{"12345678", true},
		{"00000000", true},
		{"1234567", false},
		{"123456789", false},
		{"1234567a", false},
		{"", false},
		{"１２３４５６７８", false},
	}
	for _, tt := range tests {
		err := ValidateDNI(tt.dni)
		if tt.valid {
			assert.NoError(t, err, tt.dni)
		} else {
			assert.ErrorIs(t, err, ErrInvalidDocument, tt.dni)
		}
	}
}

func TestComposeFullName(t *testing.T) {
	p := Person{FirstName: "Rosa", FirstLastName: "Quispe", SecondLastName: " "}
	assert.Equal(t, "Rosa Quispe", p.ComposeFullName())
	assert.Empty(t, Person{}.ComposeFullName())
}
