package refdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/farmcost/internal/validation"
)

// KeySeparator joins natural key parts into a composite key.
const KeySeparator = "_"

// ErrIncompleteKey is returned when a natural key field is missing or blank.
var ErrIncompleteKey = errors.New("incomplete natural key")

var partEscaper = strings.NewReplacer(`\`, `\\`, KeySeparator, `\`+KeySeparator)

// DeriveKey joins the parts with KeySeparator.
//
// A single part is returned unchanged. With several parts, a separator or
// backslash inside a part is backslash-escaped so that distinct tuples never
// produce the same key; parts without them yield the plain joined form
// ("2020_KE_Urea").
func DeriveKey(parts ...string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = partEscaper.Replace(p)
	}
	return strings.Join(escaped, KeySeparator)
}

// FormatPart renders a natural key value the way it appears in a key.
// Integers have no decimals, floats use the shortest representation.
func FormatPart(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// Key computes the composite key of a row of this kind. It is the only
// place keys are derived, so add, update and ingest always agree.
func (k *Kind) Key(row Row) (string, error) {
	parts := make([]string, len(k.NaturalKey))
	for i, name := range k.NaturalKey {
		v := row[name]
		if validation.IsBlank(v) {
			return "", fmt.Errorf("%s: %w: %s", k.Name, ErrIncompleteKey, name)
		}
		parts[i] = FormatPart(v)
	}
	return DeriveKey(parts...), nil
}
