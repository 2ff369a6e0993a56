package memstore

import (
	"time"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

func validOp(op ports.Op) bool {
	switch op {
	case ports.OpEqual, ports.OpNotEqual, ports.OpLess, ports.OpLessEqual,
		ports.OpGreater, ports.OpGreaterEqual, ports.OpArrayContains:
		return true
	}
	return false
}

func matches(field any, op ports.Op, value any) bool {
	if op == ports.OpArrayContains {
		return contains(field, value)
	}
	if field == nil {
		// Documents without the field never match, not even !=.
		return false
	}
	c, ok := compare(field, value)
	if !ok {
		return op == ports.OpNotEqual
	}
	switch op {
	case ports.OpEqual:
		return c == 0
	case ports.OpNotEqual:
		return c != 0
	case ports.OpLess:
		return c < 0
	case ports.OpLessEqual:
		return c <= 0
	case ports.OpGreater:
		return c > 0
	case ports.OpGreaterEqual:
		return c >= 0
	}
	return false
}

// compare orders two scalars of the same kind. ok is false when they are
// not comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}

	if _, isString := b.(string); isString {
		return 0, false
	}
	x, ok := domain.Number(a)
	if !ok {
		return 0, false
	}
	y, ok := domain.Number(b)
	if !ok {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func contains(field, value any) bool {
	switch arr := field.(type) {
	case []any:
		for _, v := range arr {
			if c, ok := compare(v, value); ok && c == 0 {
				return true
			}
		}
	case []string:
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, v := range arr {
			if v == s {
				return true
			}
		}
	}
	return false
}
