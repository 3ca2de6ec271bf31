package main

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

const dateLayout = "2006-01-02"

// parseRecord decodes one JSON-lines promotion record. Field names follow the
// REST API. Missing "activa" means active; amounts may be numbers or strings.
func parseRecord(b []byte) (promotion.Promotion, error) {
	p := promotion.Promotion{Active: true}
	d := jx.DecodeBytes(b)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "codigo":
			p.Code, err = d.Str()
		case "titulo":
			p.Title, err = d.Str()
		case "descripcion":
			p.Description, err = d.Str()
		case "imagen":
			p.Image, err = d.Str()
		case "tipoPromocion":
			var s string
			s, err = d.Str()
			p.Kind = promotion.Kind(s)
		case "tipoDescuento":
			var s string
			s, err = d.Str()
			p.DiscountType = promotion.DiscountType(s)
		case "descuento":
			p.Value, err = decodeAmount(d)
		case "montoMinimo":
			p.MinAmount, err = decodeAmount(d)
		case "cantidadMinima":
			p.MinQuantity, err = d.Int()
		case "productosAplicables":
			p.ApplicableProducts, err = decodeProducts(d)
		case "fechaInicio":
			p.StartDate, err = decodeDate(d)
		case "fechaFin":
			p.EndDate, err = decodeDate(d)
		case "activa":
			p.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return promotion.Promotion{}, err
	}
	if p.Code == "" {
		return promotion.Promotion{}, errors.New("record has no codigo")
	}
	return p, nil
}

func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// decodeProducts accepts an array of names or a comma-separated string.
func decodeProducts(d *jx.Decoder) ([]string, error) {
	var out []string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
		return out, nil
	default:
		err := d.Arr(func(d *jx.Decoder) error {
			s, err := d.Str()
			if err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
		return out, err
	}
}

func decodeDate(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
