// Package expr implements the derived-metric expression engine: a
// parse-tree walker that computes derived metric values from operand
// results fetched from an agent. Grounded on
// original_source/src/libpcp/src/derive_fetch.c (eval_expr, bin_op,
// regex_inst_gc).
package expr

import (
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

// Type mirrors the pmDesc.type space the expression engine operates
// over. Only the numeric and string types participate in evaluation;
// aggregate/event types never reach a derived expression.
type Type int32

const (
	TypeInt32 Type = iota
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat
	TypeDouble
	TypeString
)

// rank orders the numeric types for promotion: bin_op's conversion
// cases only ever widen a narrower rank into a wider one, never the
// reverse, which is the ordering captured here. The literal promote[][]
// table from the original source was not present in the retrieved
// sources, so this ordering is reconstructed from that widening
// behaviour rather than transcribed.
var rank = map[Type]int{
	TypeInt32:  0,
	TypeUint32: 0,
	TypeInt64:  1,
	TypeUint64: 1,
	TypeFloat:  2,
	TypeDouble: 3,
}

// Atom is a tagged-union value for one instance of one node's result,
// analogous to pmAtomValue plus its owning type tag.
type Atom struct {
	Type Type
	I32  int32
	U32  uint32
	I64  int64
	U64  uint64
	F32  float32
	F64  float64
	Str  string
}

func (a Atom) AsFloat64() float64 {
	switch a.Type {
	case TypeInt32:
		return float64(a.I32)
	case TypeUint32:
		return float64(a.U32)
	case TypeInt64:
		return float64(a.I64)
	case TypeUint64:
		return float64(a.U64)
	case TypeFloat:
		return float64(a.F32)
	case TypeDouble:
		return a.F64
	}
	return 0
}

func (a Atom) IsZero() bool {
	switch a.Type {
	case TypeInt32:
		return a.I32 == 0
	case TypeUint32:
		return a.U32 == 0
	case TypeInt64:
		return a.I64 == 0
	case TypeUint64:
		return a.U64 == 0
	case TypeFloat:
		return a.F32 == 0
	case TypeDouble:
		return a.F64 == 0
	}
	return false
}

// Value is one instance-tagged reading within a node's value list.
type Value struct {
	Inst pdu.InstanceID
	Atom Atom
}

// Descriptor is a node's computed static type, same shape as a wire
// descriptor minus the PMID (derived nodes other than N_NAME have no
// metric identity of their own).
type Descriptor struct {
	Type  Type
	Indom pdu.InstDomID
	Units wire.Units
}
