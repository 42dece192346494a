// Package cypher compiles record descriptors into Cypher query text.
package cypher

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/protrend/regnet/pkg/hashkey"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrUnknownOperator = errors.New("cypher: unknown operator")

// Operator is a comparison operator usable in a filter.
type Operator struct {
	Name   string // name used in lookups, such as "exact" in "name__exact"
	Symbol string // symbol in the query language

	// Quoted indicates that the operand is always rendered as a string literal.
	// Other operators render their operand according to its type.
	Quoted bool

	// TakesOperand indicates if the operator has a right-hand side at all.
	TakesOperand bool

	match func(left, right any) bool
}

// Operators holds all known operators by name.
var Operators = map[string]Operator{
	"exact":      {Name: "exact", Symbol: "=", TakesOperand: true, match: matchEqual},
	"ne":         {Name: "ne", Symbol: "<>", TakesOperand: true, match: matchNotEqual},
	"lt":         {Name: "lt", Symbol: "<", TakesOperand: true, match: matchOrder(func(c int) bool { return c < 0 })},
	"gt":         {Name: "gt", Symbol: ">", TakesOperand: true, match: matchOrder(func(c int) bool { return c > 0 })},
	"lte":        {Name: "lte", Symbol: "<=", TakesOperand: true, match: matchOrder(func(c int) bool { return c <= 0 })},
	"gte":        {Name: "gte", Symbol: ">=", TakesOperand: true, match: matchOrder(func(c int) bool { return c >= 0 })},
	"in":         {Name: "in", Symbol: "IN", TakesOperand: true, match: matchIn},
	"isnull":     {Name: "isnull", Symbol: "IS NULL", TakesOperand: false, match: matchNull},
	"contains":   {Name: "contains", Symbol: "CONTAINS", Quoted: true, TakesOperand: true, match: matchString(strings.Contains)},
	"startswith": {Name: "startswith", Symbol: "STARTS WITH", Quoted: true, TakesOperand: true, match: matchString(strings.HasPrefix)},
	"endswith":   {Name: "endswith", Symbol: "ENDS WITH", Quoted: true, TakesOperand: true, match: matchString(strings.HasSuffix)},
}

// Lookup returns the operator with the given name.
func Lookup(name string) (Operator, error) {
	op, ok := Operators[name]
	if !ok {
		return op, fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	return op, nil
}

// Fragment renders the condition "left op right".
func (op Operator) Fragment(left string, right any) (string, error) {
	if !op.TakesOperand {
		return left + " " + op.Symbol, nil
	}

	var operand string
	switch {
	case op.Quoted:
		operand = Quote(hashkey.Stringify(right))
	case op.Name == "in":
		list, err := Literal(right)
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(list, "[") {
			list = "[" + list + "]"
		}
		operand = list
	default:
		literal, err := Literal(right)
		if err != nil {
			return "", err
		}
		operand = literal
	}
	return left + " " + op.Symbol + " " + operand, nil
}

// Match evaluates the operator against a stored value, the way the query language would.
// Comparisons involving null or values of incomparable types do not match.
func (op Operator) Match(left, right any) bool {
	return op.match(left, right)
}

// Quote renders s as a single-quoted string literal.
func Quote(s string) string {
	var builder strings.Builder
	builder.Grow(len(s) + 2)
	builder.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			builder.WriteString(`\\`)
		case '\'':
			builder.WriteString(`\'`)
		case '\n':
			builder.WriteString(`\n`)
		case '\r':
			builder.WriteString(`\r`)
		case '\t':
			builder.WriteString(`\t`)
		default:
			builder.WriteRune(r)
		}
	}
	builder.WriteByte('\'')
	return builder.String()
}

var errUnsupportedLiteral = errors.New("cypher: unsupported literal")

// Literal renders value as a literal of the query language.
// Strings are quoted, numbers and booleans are not, slices become lists.
func Literal(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "null", nil
	case string:
		return Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%w: %v", errUnsupportedLiteral, v)
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "", fmt.Errorf("%w: %T", errUnsupportedLiteral, value)
	}

	items := make([]string, rv.Len())
	for i := range items {
		item, err := Literal(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	return "[" + strings.Join(items, ", ") + "]", nil
}

// number converts numeric values to float64.
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// compare compares two values of the same kind.
func compare(left, right any) (c int, ok bool) {
	if l, ok := number(left); ok {
		r, ok := number(right)
		if !ok {
			return 0, false
		}
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		default:
			return 0, true
		}
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(l, r), true
	case bool:
		r, ok := right.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case l == r:
			return 0, true
		case !l:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func matchEqual(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	if c, ok := compare(left, right); ok {
		return c == 0
	}
	return reflect.DeepEqual(left, right)
}

func matchNotEqual(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	if c, ok := compare(left, right); ok {
		return c != 0
	}
	return !reflect.DeepEqual(left, right)
}

func matchOrder(accept func(c int) bool) func(left, right any) bool {
	return func(left, right any) bool {
		if left == nil || right == nil {
			return false
		}
		c, ok := compare(left, right)
		return ok && accept(c)
	}
}

func matchIn(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	rv := reflect.ValueOf(right)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return matchEqual(left, right)
	}
	for i := 0; i < rv.Len(); i++ {
		if matchEqual(left, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func matchNull(left, _ any) bool {
	return left == nil
}

func matchString(f func(s, sub string) bool) func(left, right any) bool {
	return func(left, right any) bool {
		l, ok := left.(string)
		if !ok {
			return false
		}
		return f(l, hashkey.Stringify(right))
	}
}

// OperatorNames returns the names of all operators, sorted.
func OperatorNames() []string {
	names := maps.Keys(Operators)
	slices.Sort(names)
	return names
}
