package cart

import (
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Field names of the stored cart representation. Existing orders use them,
// so they must not change.
const (
	fieldName     = "nombre"
	fieldQuantity = "cantidad"
	fieldPrice    = "precio"
)

// Quantities outside the int32 range are rejected so the decoded value is
// the same on every platform.
var (
	minQuantity = decimal.NewFromInt(math.MinInt32)
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
)

// ErrMalformed is the CodecFailure kind: stored cart text could not be decoded.
var ErrMalformed = errors.New("malformed cart")

// DecodeError reports why stored cart text could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode cart: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// Encode renders items as a JSON array of {"nombre","cantidad","precio"} objects.
// An empty list encodes to "[]".
func Encode(items []Item) string {
	var e jx.Encoder
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart(fieldName)
		e.Str(item.Name)
		e.FieldStart(fieldQuantity)
		e.Int(item.Quantity)
		e.FieldStart(fieldPrice)
		e.Num(jx.Num(item.Price.String()))
		e.ObjEnd()
	}
	e.ArrEnd()
	return string(e.Bytes())
}

// Decode parses stored cart text.
//
// Blank text yields an empty list and no error. Anything that is not a
// well-formed array of complete items yields an empty list and a
// *DecodeError: a single bad item discards the whole cart rather than
// silently dropping lines. The returned slice is never nil.
func Decode(text string) ([]Item, error) {
	if strings.TrimSpace(text) == "" {
		return []Item{}, nil
	}
	d := jx.DecodeStr(text)
	items, err := decodeItems(d)
	if err != nil {
		return []Item{}, &DecodeError{Err: err}
	}
	if tt := d.Next(); tt != jx.Invalid {
		return []Item{}, &DecodeError{Err: errors.Errorf("unexpected %s after array", tt)}
	}
	return items, nil
}

func decodeItems(d *jx.Decoder) ([]Item, error) {
	if tt := d.Next(); tt != jx.Array {
		return nil, errors.Errorf("expected array, got %s", tt)
	}
	items := []Item{}
	if err := d.Arr(func(d *jx.Decoder) error {
		item, err := decodeItem(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(items))
		}
		items = append(items, item)
		return nil
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var (
		item                          Item
		hasName, hasQuantity, hasPrice bool
	)
	if tt := d.Next(); tt != jx.Object {
		return item, errors.Errorf("expected object, got %s", tt)
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case fieldName:
			name, err := d.Str()
			if err != nil {
				return errors.Wrap(err, fieldName)
			}
			item.Name = name
			hasName = true
		case fieldQuantity:
			n, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, fieldQuantity)
			}
			if !n.IsInteger() {
				return errors.Errorf("%s: %s is not an integer", fieldQuantity, n)
			}
			if n.LessThan(minQuantity) || n.GreaterThan(maxQuantity) {
				return errors.Errorf("%s: %s out of range", fieldQuantity, n)
			}
			item.Quantity = int(n.IntPart())
			hasQuantity = true
		case fieldPrice:
			p, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, fieldPrice)
			}
			item.Price = p
			hasPrice = true
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return item, err
	}

	switch {
	case !hasName:
		return item, errors.Errorf("missing %q", fieldName)
	case !hasQuantity:
		return item, errors.Errorf("missing %q", fieldQuantity)
	case !hasPrice:
		return item, errors.Errorf("missing %q", fieldPrice)
	}
	return item, nil
}

// decodeDecimal accepts a JSON number or a string holding one.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", tt)
	}
}
