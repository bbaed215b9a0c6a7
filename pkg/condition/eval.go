package condition

import (
	"fmt"
	"strconv"
	"strings"
)

type node interface {
	eval(values map[string]any) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(values)
}

type andNode struct{ left, right node }

func (n andNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(values)
}

type notNode struct{ inner node }

func (n notNode) eval(values map[string]any) (bool, error) {
	ok, err := n.inner.eval(values)
	return !ok, err
}

type truthyNode struct{ field string }

func (n truthyNode) eval(values map[string]any) (bool, error) {
	return Truthy(values[n.field]), nil
}

type compareNode struct {
	field string
	op    tokenKind
	lit   token
}

func (n compareNode) eval(values map[string]any) (bool, error) {
	value, present := values[n.field]
	if !present {
		value = nil
	}

	switch n.lit.kind {
	case tokNull:
		return n.equality(value == nil)
	case tokBool:
		got, _ := toBool(value)
		return n.equality(got == (n.lit.text == "true"))
	case tokString:
		return n.equality(toString(value) == n.lit.text)
	case tokNumber:
		want, err := strconv.ParseFloat(n.lit.text, 64)
		if err != nil {
			return false, fmt.Errorf("condition: bad number %q", n.lit.text)
		}
		got, ok := toNumber(value)
		if !ok {
			// Ordering against a missing or non-numeric value never holds.
			if isOrdering(n.op) {
				return false, nil
			}
			return n.equality(false)
		}
		switch n.op {
		case tokLt:
			return got < want, nil
		case tokLte:
			return got <= want, nil
		case tokGt:
			return got > want, nil
		case tokGte:
			return got >= want, nil
		}
		return n.equality(got == want)
	}
	return false, fmt.Errorf("condition: unsupported literal %q", n.lit.text)
}

func (n compareNode) equality(equal bool) (bool, error) {
	switch n.op {
	case tokEq:
		return equal, nil
	case tokNeq:
		return !equal, nil
	}
	return false, fmt.Errorf("condition: operator not valid for %q", n.lit.text)
}

func collect(n node, visit func(string)) {
	switch typed := n.(type) {
	case orNode:
		collect(typed.left, visit)
		collect(typed.right, visit)
	case andNode:
		collect(typed.left, visit)
		collect(typed.right, visit)
	case notNode:
		collect(typed.inner, visit)
	case truthyNode:
		visit(typed.field)
	case compareNode:
		visit(typed.field)
	}
}

// Truthy reports whether a form value counts as set: non-empty strings,
// non-zero numbers, true, and non-empty collections.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
		return strings.TrimSpace(v) != "", true
	default:
		return Truthy(value), true
	}
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
