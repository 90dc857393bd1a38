package refdata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperengineering/farmcost/internal/validation"
)

// Row is one reference row keyed by JSON field name. Values are string,
// int64, float64 or nil.
type Row map[string]any

// MaxTextLength bounds text fields accepted from clients.
const MaxTextLength = 255

// Parse coerces a decoded JSON object into a typed row of this kind and
// checks it for add and update: every required field must be present and
// truthy. Unknown fields are ignored.
//
// Numbers may arrive as JSON numbers or numeric strings. Empty strings
// become NULL, as do zeros in fields where zero means missing.
func (k *Kind) Parse(raw map[string]any) (Row, []validation.ValidationError) {
	var v validation.Collector
	row := make(Row, len(k.Fields))

	for _, f := range k.Fields {
		val, err := coerce(f, raw[f.Name])
		if err != nil {
			v.Add(&validation.ValidationError{Field: f.Name, Message: err.Error()})
			continue
		}
		if s, ok := val.(string); ok {
			v.Add(validation.ValidateUTF8(f.Name, s))
			v.Add(validation.ValidateNoNullBytes(f.Name, s))
			v.Add(validation.ValidateMaxLength(f.Name, s, MaxTextLength))
		}
		if f.Required {
			v.Add(validation.ValidatePresent(f.Name, val))
		}
		row[f.Name] = val
	}

	return row, v.Errors()
}

// MissingRequired reports whether any of the errors is a missing field.
func MissingRequired(errs []validation.ValidationError) bool {
	for _, e := range errs {
		if e.Message == "is required" {
			return true
		}
	}
	return false
}

func coerce(f Field, v any) (any, error) {
	var val any
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		if f.Type == Text {
			return x, nil
		}
		n, err := parseNumber(f.Type, strings.TrimSpace(x))
		if err != nil {
			return nil, err
		}
		val = n
	case json.Number:
		if f.Type == Text {
			return x.String(), nil
		}
		n, err := parseNumber(f.Type, x.String())
		if err != nil {
			return nil, err
		}
		val = n
	case float64:
		switch f.Type {
		case Text:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case Integer:
			n, err := wholeNumber(x)
			if err != nil {
				return nil, err
			}
			val = n
		default:
			val = x
		}
	case int64:
		switch f.Type {
		case Text:
			return strconv.FormatInt(x, 10), nil
		case Numeric:
			val = float64(x)
		default:
			val = x
		}
	case bool:
		if !x {
			return nil, nil
		}
		return nil, typeError(f.Type)
	default:
		return nil, typeError(f.Type)
	}

	if f.ZeroIsMissing && isZero(val) {
		return nil, nil
	}
	return val, nil
}

func parseNumber(t FieldType, s string) (any, error) {
	if t == Integer {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("must be a whole number")
		}
		return wholeNumber(f)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("must be a number")
	}
	return f, nil
}

// wholeNumber converts f to int64, rejecting fractions and values outside
// the int64 range.
func wholeNumber(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("must be a whole number")
	}
	return int64(f), nil
}

func typeError(t FieldType) error {
	if t == Integer {
		return fmt.Errorf("must be an integer value")
	}
	return fmt.Errorf("must be a %s value", t)
}

func isZero(v any) bool {
	switch x := v.(type) {
	case int64:
		return x == 0
	case float64:
		return x == 0
	}
	return false
}
