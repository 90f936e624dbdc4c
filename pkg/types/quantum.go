package types

// Quantum is the boolean-algebra variant of Logical: its third state,
// Other, participates in three-valued operators but refuses coercion to a
// boolean or a number.
type Quantum uint8

const (
	QFalse Quantum = iota
	QTrue
	Other
)

// Bool coerces to a plain boolean. Other cannot be coerced.
func (q Quantum) Bool() (bool, error) {
	switch q {
	case QTrue:
		return true, nil
	case QFalse:
		return false, nil
	default:
		return false, ErrInvalidOperation
	}
}

// Int returns the numeric ordinal. Other cannot be coerced.
func (q Quantum) Int() (int, error) {
	if q == Other {
		return 0, ErrInvalidOperation
	}
	return int(q), nil
}

// And returns the three-valued conjunction of q and o.
func (q Quantum) And(o Quantum) Quantum {
	return Quantum(triAnd(uint8(q), uint8(o)))
}

// Or returns the three-valued disjunction of q and o.
func (q Quantum) Or(o Quantum) Quantum {
	return Quantum(triOr(uint8(q), uint8(o)))
}

// Not returns the three-valued negation of q.
func (q Quantum) Not() Quantum {
	return Quantum(triNot(uint8(q)))
}

func (q Quantum) String() string {
	switch q {
	case QFalse:
		return "false"
	case QTrue:
		return "true"
	default:
		return "other"
	}
}
