package expr

// Promote returns the type a binary operator's result is computed in
// when its operands have types a and b. Equal types need no promotion.
// Distinct types widen to whichever has the larger rank; two distinct
// types of equal rank widen further rather than arbitrarily picking a
// signedness: 32 vs U32 gives 64, and 64 vs U64 gives double.
func Promote(a, b Type) Type {
	if a == b {
		return a
	}
	ra, rb := rank[a], rank[b]
	if ra == rb {
		switch ra {
		case 0:
			return TypeInt64
		case 1:
			return TypeDouble
		}
	}
	if ra > rb {
		return a
	}
	return b
}

// widen converts v (of type from) into an Atom of type to. Used to
// promote each operand to the binary operator's result type before
// the operator itself runs (mirrors bin_op's per-type switch).
func widen(v Atom, to Type) Atom {
	if v.Type == to {
		return v
	}
	switch to {
	case TypeUint32:
		switch v.Type {
		case TypeInt32:
			return Atom{Type: to, U32: uint32(v.I32)}
		}
	case TypeInt64:
		switch v.Type {
		case TypeInt32:
			return Atom{Type: to, I64: int64(v.I32)}
		case TypeUint32:
			return Atom{Type: to, I64: int64(v.U32)}
		case TypeUint64:
			return Atom{Type: to, I64: int64(v.U64)}
		}
	case TypeUint64:
		switch v.Type {
		case TypeInt32:
			return Atom{Type: to, U64: uint64(v.I32)}
		case TypeUint32:
			return Atom{Type: to, U64: uint64(v.U32)}
		case TypeInt64:
			return Atom{Type: to, U64: uint64(v.I64)}
		}
	case TypeFloat:
		return Atom{Type: to, F32: float32(v.AsFloat64())}
	case TypeDouble:
		return Atom{Type: to, F64: v.AsFloat64()}
	}
	return v
}
