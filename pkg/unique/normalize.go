package unique

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/protrend/regnet/pkg/hashkey"
)

var ErrInvalidKey = errors.New("unique: invalid natural key")

// Normalize turns a natural key into its uniqueness key.
// The value is stringified, lower-cased and stripped of surrounding whitespace.
func Normalize(value any) string {
	return strings.TrimSpace(strings.ToLower(hashkey.Stringify(value)))
}

// NormalizeInt is like Normalize, but first interprets value as an integer.
func NormalizeInt(value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%w: %v is not an integer", ErrInvalidKey, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an integer", ErrInvalidKey, v)
		}
		return strconv.FormatInt(i, 10), nil
	default:
		return "", fmt.Errorf("%w: %T is not an integer", ErrInvalidKey, value)
	}
}
