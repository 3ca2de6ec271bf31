// Package identity describes national identity document lookups.
package identity

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

const dniLength = 8

var (
	// ErrNotFound is returned when the registry has no person for the document.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidDocument is returned for a malformed DNI.
	ErrInvalidDocument = errors.New("invalid document number")
)

// Person is the registry record of a DNI holder.
type Person struct {
	DocumentNumber string
	FirstName      string
	FirstLastName  string
	SecondLastName string
	FullName       string
}

// ComposeFullName joins the non-empty name parts.
func (p Person) ComposeFullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.FirstLastName, p.SecondLastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Lookup resolves a DNI to its holder.
type Lookup interface {
	LookupDNI(ctx context.Context, dni string) (*Person, error)
}

// ValidateDNI reports ErrInvalidDocument unless dni is exactly 8 ASCII digits.
func ValidateDNI(dni string) error {
	if len(dni) != dniLength {
		return errors.Wrapf(ErrInvalidDocument, "%q: want %d digits", dni, dniLength)
	}
	for _, c := range dni {
		if c < '0' || c > '9' {
			return errors.Wrapf(ErrInvalidDocument, "%q: want digits only", dni)
		}
	}
	return nil
}
