// Package types holds the value union shared by all dialects: tri-state
// logicals, dates and datetimes with explicit "no value" states, and exact
// fixed-point currency. Null is represented by an untyped nil interface
// value throughout the module.
package types

// Logical is the tri-state boolean stored in an 'L' field.
// The zero value is False.
type Logical uint8

const (
	False Logical = iota
	True
	Unknown
)

// tri-state truth kernel shared by Logical and Quantum.
// Ordinals: 0 false, 1 true, 2 unknown/other.

func triAnd(x, y uint8) uint8 {
	if x == 0 || y == 0 {
		return 0
	}
	if x == 2 || y == 2 {
		return 2
	}
	return 1
}

func triOr(x, y uint8) uint8 {
	if x == 1 || y == 1 {
		return 1
	}
	if x == 2 || y == 2 {
		return 2
	}
	return 0
}

func triNot(x uint8) uint8 {
	switch x {
	case 0:
		return 1
	case 1:
		return 0
	default:
		return 2
	}
}

// Bool coerces to a plain boolean; Unknown is falsy.
func (l Logical) Bool() bool {
	return l == True
}

// Int returns the numeric ordinal: 0 false, 1 true, 2 unknown.
func (l Logical) Int() int {
	return int(l)
}

// And returns the three-valued conjunction of l and o.
func (l Logical) And(o Logical) Logical {
	return Logical(triAnd(uint8(l), uint8(o)))
}

// Or returns the three-valued disjunction of l and o.
func (l Logical) Or(o Logical) Logical {
	return Logical(triOr(uint8(l), uint8(o)))
}

// Not returns the three-valued negation of l.
func (l Logical) Not() Logical {
	return Logical(triNot(uint8(l)))
}

func (l Logical) String() string {
	switch l {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}
