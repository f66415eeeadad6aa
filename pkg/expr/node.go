package expr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// Kind tags every node type the parser/binder can produce.
type Kind int

const (
	KInteger Kind = iota
	KDouble
	KName
	KScale
	KAnon
	KDefined
	KPattern // leaf: holds an exact-match or regex match spec, never evaluated alone
	KFilterInst
	KNeg
	KNot
	KPlus
	KMinus
	KStar
	KSlash
	KLT
	KLEQ
	KEQ
	KGEQ
	KGT
	KNEQ
	KAnd
	KOr
	KQuest
	KColon
	KAvg
	KCount
	KSum
	KMax
	KMin
	KScalar
	KDelta
	KRate
	KInstant
	KRescale
)

// ErrNoValues marks an operand with no current values — distinct from
// a hard error, since count() maps it to zero rather than propagating.
var ErrNoValues = errors.New("expr: operand has no values")

// PatternKind distinguishes the two filter-inst match strategies.
type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternRegex
)

// RegexInstCompact is the eviction cadence for a regex filter-inst's
// seen-instance hash (original: REGEX_INST_COMPACT).
const RegexInstCompact = 16

type instCtl struct {
	used  int
	match bool
}

// Node is one element of a derived-metric expression tree. A node
// owns its children exclusively: the tree has no cycles and no shared
// subtrees (spec "Cyclic graphs").
type Node struct {
	Kind        Kind
	Left, Right *Node

	// Literal/Name/Pattern payloads, fixed at parse/bind time.
	Literal      string
	PMID         pdu.MetricID
	PatternKind  PatternKind
	PatternExact string
	PatternExactInst pdu.InstanceID // resolved lazily, NullInstance until then
	patternRegex *regexp.Regexp

	Desc Descriptor

	// SaveLast is set at bind time for any node that is the left child
	// of a Delta or Rate node: such a node must retain one historical
	// value list instead of discarding it every evaluation.
	SaveLast bool

	values []Value
	err    error

	lastValues []Value
	stamp      wire.CurrentTimestamp
	lastStamp  wire.CurrentTimestamp

	literalParsed bool
	timeScale     float64 // -1 until computed once for rate() time-utilization

	seen map[pdu.InstanceID]*instCtl
	used int // pattern-node usage counter, compared against RegexInstCompact
}

// Catalog resolves instance names within an indom, needed by
// filter-inst pattern matching (exact lookup and the canonical,
// space-truncated name regex matches against).
type Catalog interface {
	InstanceName(indom pdu.InstDomID, inst pdu.InstanceID) (string, bool)
	LookupInstance(indom pdu.InstDomID, name string) (pdu.InstanceID, bool)
}

func NewPattern(kind PatternKind, text string) (*Node, error) {
	n := &Node{Kind: KPattern, PatternKind: kind, PatternExact: text, PatternExactInst: pdu.NullInstance}
	if kind == PatternRegex {
		re, err := regexp.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("compile filter-inst regex %q: %w", text, err)
		}
		n.patternRegex = re
	}
	return n, nil
}

// SetLeafValues injects the current fetch result's values into a
// KName leaf node, or the fetch error if the operand PMID was absent
// or failed. Called by the engine before Eval walks the tree.
func (n *Node) SetLeafValues(values []Value, err error) {
	n.values = values
	n.err = err
}

// Values returns the node's most recently computed (or injected)
// values.
func (n *Node) Values() []Value { return n.values }

// externalName returns the instance's canonical name truncated at the
// first space, matching the original's classical external-name match
// convention.
func externalName(catalog Catalog, indom pdu.InstDomID, inst pdu.InstanceID) (string, bool) {
	name, ok := catalog.InstanceName(indom, inst)
	if !ok {
		return "", false
	}
	for i, r := range name {
		if r == ' ' {
			return name[:i], true
		}
	}
	return name, true
}

// Eval walks the tree in pre-order, filling in values bottom-up. Any
// child error propagates to the parent unchanged, except that count()
// maps a child error to the literal value 0.
func (n *Node) Eval(catalog Catalog, ts wire.CurrentTimestamp) error {
	if n.Left != nil {
		if err := n.Left.Eval(catalog, ts); err != nil {
			if n.Kind == KCount {
				n.values = []Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeInt32, I32: 0}}}
				n.err = nil
				return nil
			}
			n.err = err
			n.values = nil
			return err
		}
	}
	if n.Right != nil {
		if err := n.Right.Eval(catalog, ts); err != nil {
			n.err = err
			n.values = nil
			return err
		}
	}

	switch n.Kind {
	case KInteger, KDouble:
		return n.evalLiteral()
	case KName:
		return n.err // values already injected by SetLeafValues
	case KScale, KAnon, KPattern:
		n.values = nil
		return nil
	case KDefined:
		return nil // already resolved at bind time
	case KNeg:
		return n.evalUnary(negAtom)
	case KNot:
		return n.evalUnary(notAtom)
	case KPlus, KMinus, KStar, KSlash:
		return n.evalArith()
	case KLT, KLEQ, KEQ, KGEQ, KGT, KNEQ, KAnd, KOr:
		return n.evalRelational()
	case KQuest:
		return n.evalQuest()
	case KColon:
		n.values = nil
		return nil
	case KDelta, KRate:
		return n.evalDeltaRate(ts)
	case KInstant:
		return n.evalInstant(ts)
	case KRescale:
		return n.evalRescale()
	case KFilterInst:
		return n.evalFilterInst(catalog)
	case KAvg, KCount, KSum, KMax, KMin, KScalar:
		return n.evalAggregate()
	}
	return fmt.Errorf("expr: unhandled node kind %d: %w", n.Kind, pmerr.ErrType)
}

func (n *Node) evalLiteral() error {
	if n.literalParsed {
		return nil
	}
	n.literalParsed = true
	atom := Atom{Type: n.Desc.Type}
	switch n.Desc.Type {
	case TypeInt32:
		v, _ := strconv.ParseInt(n.Literal, 10, 32)
		atom.I32 = int32(v)
	case TypeUint32:
		v, _ := strconv.ParseUint(n.Literal, 10, 32)
		atom.U32 = uint32(v)
	case TypeInt64:
		v, _ := strconv.ParseInt(n.Literal, 10, 64)
		atom.I64 = v
	case TypeUint64:
		v, _ := strconv.ParseUint(n.Literal, 10, 64)
		atom.U64 = v
	case TypeFloat:
		v, _ := strconv.ParseFloat(n.Literal, 32)
		atom.F32 = float32(v)
	case TypeDouble:
		v, _ := strconv.ParseFloat(n.Literal, 64)
		atom.F64 = v
	}
	n.values = []Value{{Inst: pdu.NullInstance, Atom: atom}}
	return nil
}

func negAtom(a Atom) Atom {
	switch a.Type {
	case TypeInt32:
		return Atom{Type: a.Type, I32: -a.I32}
	case TypeUint32:
		return Atom{Type: TypeInt32, I32: -int32(a.U32)}
	case TypeInt64:
		return Atom{Type: a.Type, I64: -a.I64}
	case TypeUint64:
		return Atom{Type: TypeInt64, I64: -int64(a.U64)}
	case TypeFloat:
		return Atom{Type: a.Type, F32: -a.F32}
	case TypeDouble:
		return Atom{Type: a.Type, F64: -a.F64}
	}
	return a
}

func notAtom(a Atom) Atom {
	v := uint32(0)
	if a.IsZero() {
		v = 1
	}
	return Atom{Type: TypeUint32, U32: v}
}

func (n *Node) evalUnary(f func(Atom) Atom) error {
	n.values = n.values[:0]
	for _, v := range n.Left.values {
		n.values = append(n.values, Value{Inst: v.Inst, Atom: f(v.Atom)})
	}
	return nil
}

// alignedPairs walks left/right value lists the way the original's
// default binary-operator case does: if both sides carry an indom,
// align by matching instance id (rescanning the right side, and
// advancing past left instances with no match); if only one side
// carries an indom, pair its instances against the other side's sole
// scalar value in order.
func alignedPairs(l, r []Value, leftHasIndom, rightHasIndom bool) []struct{ L, R Value } {
	var out []struct{ L, R Value }
	if !leftHasIndom && !rightHasIndom {
		if len(l) > 0 && len(r) > 0 {
			out = append(out, struct{ L, R Value }{l[0], r[0]})
		}
		return out
	}
	i, j := 0, 0
	for {
		if leftHasIndom && i >= len(l) {
			break
		}
		if rightHasIndom && j >= len(r) {
			break
		}
		if !leftHasIndom && len(r) == 0 {
			break
		}
		if !rightHasIndom && len(l) == 0 {
			break
		}
		var lv, rv Value
		if leftHasIndom {
			lv = l[i]
		} else {
			lv = l[0]
		}
		if rightHasIndom {
			rv = r[j]
		} else {
			rv = r[0]
		}
		if leftHasIndom && rightHasIndom && lv.Inst != rv.Inst {
			match := -1
			for jj := range r {
				if r[jj].Inst == lv.Inst {
					match = jj
					break
				}
			}
			if match == -1 {
				i++
				j = 0
				continue
			}
			j = match
			rv = r[j]
		}
		out = append(out, struct{ L, R Value }{lv, rv})
		if leftHasIndom {
			i++
			if rightHasIndom {
				j++
				if j >= len(r) {
					j = 0
				}
			}
		} else if rightHasIndom {
			j++
		} else {
			break
		}
	}
	return out
}

func (n *Node) evalArith() error {
	n.values = nil
	if len(n.Left.values) == 0 || len(n.Right.values) == 0 {
		return nil
	}
	resultType := Promote(n.Left.Desc.Type, n.Right.Desc.Type)
	pairs := alignedPairs(n.Left.values, n.Right.values,
		n.Left.Desc.Indom != pdu.NullInstDom, n.Right.Desc.Indom != pdu.NullInstDom)
	for _, p := range pairs {
		v, err := binOp(n.Kind, resultType, p.L.Atom, p.R.Atom)
		if err != nil {
			return err
		}
		inst := p.R.Inst
		if n.Left.Desc.Indom != pdu.NullInstDom {
			inst = p.L.Inst
		}
		n.values = append(n.values, Value{Inst: inst, Atom: v})
	}
	return nil
}

func (n *Node) evalRelational() error {
	n.values = nil
	if len(n.Left.values) == 0 || len(n.Right.values) == 0 {
		return nil
	}
	resultType := Promote(n.Left.Desc.Type, n.Right.Desc.Type)
	pairs := alignedPairs(n.Left.values, n.Right.values,
		n.Left.Desc.Indom != pdu.NullInstDom, n.Right.Desc.Indom != pdu.NullInstDom)
	for _, p := range pairs {
		v, err := binOp(n.Kind, resultType, p.L.Atom, p.R.Atom)
		if err != nil {
			return err
		}
		u := uint32(0)
		if !v.IsZero() {
			u = 1
		}
		inst := p.R.Inst
		if n.Left.Desc.Indom != pdu.NullInstDom {
			inst = p.L.Inst
		}
		n.values = append(n.values, Value{Inst: inst, Atom: Atom{Type: TypeUint32, U32: u}})
	}
	return nil
}

func binOp(kind Kind, resultType Type, a, b Atom) (Atom, error) {
	l := widen(a, resultType)
	r := widen(b, resultType)
	switch resultType {
	case TypeInt32:
		return Atom{Type: resultType, I32: intOp32(kind, l.I32, r.I32)}, nil
	case TypeUint32:
		return Atom{Type: resultType, U32: uintOp32(kind, l.U32, r.U32)}, nil
	case TypeInt64:
		return Atom{Type: resultType, I64: intOp64(kind, l.I64, r.I64)}, nil
	case TypeUint64:
		return Atom{Type: resultType, U64: uintOp64(kind, l.U64, r.U64)}, nil
	case TypeFloat:
		return Atom{Type: resultType, F32: floatOp32(kind, l.F32, r.F32)}, nil
	case TypeDouble:
		v, err := floatOp64(kind, l.F64, r.F64)
		return Atom{Type: resultType, F64: v}, err
	}
	return Atom{}, fmt.Errorf("expr: binary op on non-numeric type: %w", pmerr.ErrType)
}

func boolToI(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func intOp32(k Kind, l, r int32) int32 {
	switch k {
	case KPlus:
		return l + r
	case KMinus:
		return l - r
	case KStar:
		return l * r
	case KLT:
		return boolToI(l < r)
	case KLEQ:
		return boolToI(l <= r)
	case KEQ:
		return boolToI(l == r)
	case KGEQ:
		return boolToI(l >= r)
	case KGT:
		return boolToI(l > r)
	case KNEQ:
		return boolToI(l != r)
	case KAnd:
		return boolToI(l != 0 && r != 0)
	case KOr:
		return boolToI(l != 0 || r != 0)
	}
	return 0
}

func uintOp32(k Kind, l, r uint32) uint32 {
	switch k {
	case KPlus:
		return l + r
	case KMinus:
		return l - r
	case KStar:
		return l * r
	case KLT:
		return uint32(boolToI(l < r))
	case KLEQ:
		return uint32(boolToI(l <= r))
	case KEQ:
		return uint32(boolToI(l == r))
	case KGEQ:
		return uint32(boolToI(l >= r))
	case KGT:
		return uint32(boolToI(l > r))
	case KNEQ:
		return uint32(boolToI(l != r))
	case KAnd:
		return uint32(boolToI(l != 0 && r != 0))
	case KOr:
		return uint32(boolToI(l != 0 || r != 0))
	}
	return 0
}

func intOp64(k Kind, l, r int64) int64 {
	switch k {
	case KPlus:
		return l + r
	case KMinus:
		return l - r
	case KStar:
		return l * r
	case KLT:
		return int64(boolToI(l < r))
	case KLEQ:
		return int64(boolToI(l <= r))
	case KEQ:
		return int64(boolToI(l == r))
	case KGEQ:
		return int64(boolToI(l >= r))
	case KGT:
		return int64(boolToI(l > r))
	case KNEQ:
		return int64(boolToI(l != r))
	case KAnd:
		return int64(boolToI(l != 0 && r != 0))
	case KOr:
		return int64(boolToI(l != 0 || r != 0))
	}
	return 0
}

func uintOp64(k Kind, l, r uint64) uint64 {
	switch k {
	case KPlus:
		return l + r
	case KMinus:
		return l - r
	case KStar:
		return l * r
	case KLT:
		return uint64(boolToI(l < r))
	case KLEQ:
		return uint64(boolToI(l <= r))
	case KEQ:
		return uint64(boolToI(l == r))
	case KGEQ:
		return uint64(boolToI(l >= r))
	case KGT:
		return uint64(boolToI(l > r))
	case KNEQ:
		return uint64(boolToI(l != r))
	case KAnd:
		return uint64(boolToI(l != 0 && r != 0))
	case KOr:
		return uint64(boolToI(l != 0 || r != 0))
	}
	return 0
}

func floatOp32(k Kind, l, r float32) float32 {
	switch k {
	case KPlus:
		return l + r
	case KMinus:
		return l - r
	case KStar:
		return l * r
	case KLT:
		return float32(boolToI(l < r))
	case KLEQ:
		return float32(boolToI(l <= r))
	case KEQ:
		return float32(boolToI(l == r))
	case KGEQ:
		return float32(boolToI(l >= r))
	case KGT:
		return float32(boolToI(l > r))
	case KNEQ:
		return float32(boolToI(l != r))
	case KAnd:
		return float32(boolToI(l != 0 && r != 0))
	case KOr:
		return float32(boolToI(l != 0 || r != 0))
	}
	return 0
}

// floatOp64 implements the double-precision operators, including the
// divide-by-zero-yields-0 rule: a zero divisor gives 0, not an error.
func floatOp64(k Kind, l, r float64) (float64, error) {
	switch k {
	case KPlus:
		return l + r, nil
	case KMinus:
		return l - r, nil
	case KStar:
		return l * r, nil
	case KSlash:
		if r == 0 {
			return 0, nil
		}
		return l / r, nil
	case KLT:
		return float64(boolToI(l < r)), nil
	case KLEQ:
		return float64(boolToI(l <= r)), nil
	case KEQ:
		return float64(boolToI(l == r)), nil
	case KGEQ:
		return float64(boolToI(l >= r)), nil
	case KGT:
		return float64(boolToI(l > r)), nil
	case KNEQ:
		return float64(boolToI(l != r)), nil
	case KAnd:
		return float64(boolToI(l != 0 && r != 0)), nil
	case KOr:
		return float64(boolToI(l != 0 || r != 0)), nil
	}
	return 0, fmt.Errorf("expr: slash only valid on double results: %w", pmerr.ErrType)
}

// evalQuest implements the ternary guard ? then : else, per spec: all
// three evaluated already (children); empty guard/then/else makes the
// whole expression empty; otherwise max(|then|,|else|) outputs, each
// selected per-instance by the guard (falling back to index 0 when the
// chosen branch is scalar).
func (n *Node) evalQuest() error {
	guard := n.Left
	then := n.Right.Left
	els := n.Right.Right
	n.values = nil
	if len(guard.values) == 0 || len(then.values) == 0 || len(els.values) == 0 {
		return nil
	}
	numval := len(then.values)
	if len(els.values) > numval {
		numval = len(els.values)
	}
	pickInst := then
	if then.Desc.Indom == pdu.NullInstDom && els.Desc.Indom != pdu.NullInstDom {
		pickInst = els
	}
	for i := 0; i < numval; i++ {
		gi := i
		if gi >= len(guard.values) {
			gi = len(guard.values) - 1
		}
		pick := then
		if guard.values[gi].Atom.IsZero() {
			pick = els
		}
		vi := i
		if vi >= len(pick.values) {
			vi = 0
		}
		inst := pdu.NullInstance
		if i < len(pickInst.values) {
			inst = pickInst.values[i].Inst
		}
		n.values = append(n.values, Value{Inst: inst, Atom: pick.values[vi].Atom})
	}
	return nil
}

// evalDeltaRate implements delta()/rate(): both consume the left
// child's current and previous value lists (populated via SaveLast).
func (n *Node) evalDeltaRate(ts wire.CurrentTimestamp) error {
	n.lastStamp = n.stamp
	n.stamp = ts
	left := n.Left
	numval := len(left.values)
	if len(left.lastValues) < numval {
		numval = len(left.lastValues)
	}
	n.values = nil
	if numval <= 0 {
		return nil
	}

	var dt float64
	if n.Kind == KRate {
		dt = float64(n.stamp.Sec-n.lastStamp.Sec) + float64(int64(n.stamp.NSec)-int64(n.lastStamp.NSec))/1e9
		if n.timeScale == 0 {
			n.timeScale = -1
		}
	}

	for i := 0; i < numval; i++ {
		j := i
		if j >= len(left.lastValues) {
			j = 0
		}
		if left.values[i].Inst != left.lastValues[j].Inst {
			match := -1
			for jj := range left.lastValues {
				if left.lastValues[jj].Inst == left.values[i].Inst {
					match = jj
					break
				}
			}
			if match == -1 {
				continue
			}
			j = match
		}
		cur, prev := left.values[i].Atom, left.lastValues[j].Atom
		if n.Kind == KDelta {
			v, err := deltaAtom(cur, prev)
			if err != nil {
				return err
			}
			n.values = append(n.values, Value{Inst: left.values[i].Inst, Atom: v})
			continue
		}
		d := cur.AsFloat64() - prev.AsFloat64()
		if dt != 0 {
			d /= dt
		}
		if left.Desc.Units.DimTime == 1 {
			if n.timeScale < 0 {
				n.timeScale = timeUtilScale(left.Desc.Units.ScaleTime)
			}
			d *= n.timeScale
		}
		n.values = append(n.values, Value{Inst: left.values[i].Inst, Atom: Atom{Type: TypeDouble, F64: d}})
	}
	return nil
}

func deltaAtom(cur, prev Atom) (Atom, error) {
	switch cur.Type {
	case TypeInt32:
		return Atom{Type: cur.Type, I32: cur.I32 - prev.I32}, nil
	case TypeUint32:
		return Atom{Type: cur.Type, U32: cur.U32 - prev.U32}, nil
	case TypeInt64:
		return Atom{Type: cur.Type, I64: cur.I64 - prev.I64}, nil
	case TypeUint64:
		return Atom{Type: cur.Type, U64: cur.U64 - prev.U64}, nil
	case TypeFloat:
		return Atom{Type: cur.Type, F32: cur.F32 - prev.F32}, nil
	case TypeDouble:
		return Atom{Type: cur.Type, F64: cur.F64 - prev.F64}, nil
	}
	return Atom{}, fmt.Errorf("expr: delta() on non-numeric operand: %w", pmerr.ErrConv)
}

func (n *Node) evalInstant(ts wire.CurrentTimestamp) error {
	n.lastStamp = n.stamp
	n.stamp = ts
	n.values = n.Left.values
	return nil
}

func (n *Node) evalRescale() error {
	n.values = nil
	factor, err := ConvScale(n.Left.Desc.Units, n.Right.Desc.Units)
	if err != nil {
		return err
	}
	for _, v := range n.Left.values {
		n.values = append(n.values, Value{Inst: v.Inst, Atom: Atom{Type: TypeDouble, F64: v.Atom.AsFloat64() * factor}})
	}
	return nil
}

// evalFilterInst restricts the right child's instances to those
// matching the left (pattern) child, per spec: an Exact pattern
// resolves one instance by name; a Regex pattern matches element-wise
// against each instance's canonical external name, with a seen-
// instance usage hash evicted every RegexInstCompact evaluations.
func (n *Node) evalFilterInst(catalog Catalog) error {
	pattern := n.Left
	target := n.Right
	n.values = nil

	if pattern.PatternKind == PatternExact {
		if pattern.PatternExactInst == pdu.NullInstance {
			inst, ok := catalog.LookupInstance(target.Desc.Indom, pattern.PatternExact)
			if !ok {
				return nil
			}
			pattern.PatternExactInst = inst
		}
		for _, v := range target.values {
			if v.Inst == pattern.PatternExactInst {
				n.values = append(n.values, v)
				break
			}
		}
		return nil
	}

	if pattern.seen == nil {
		pattern.seen = make(map[pdu.InstanceID]*instCtl)
	}
	for _, v := range target.values {
		ic, ok := pattern.seen[v.Inst]
		if !ok {
			ic = &instCtl{}
			name, found := externalName(catalog, target.Desc.Indom, v.Inst)
			ic.match = found && pattern.patternRegex.MatchString(name)
			pattern.seen[v.Inst] = ic
		}
		ic.used++
		if ic.match {
			n.values = append(n.values, v)
		}
	}
	pattern.used++
	if pattern.used >= RegexInstCompact {
		pattern.gc()
	}
	return nil
}

// gc drops instances seen in under half of the last RegexInstCompact
// evaluations, bounding memory for a dynamic instance domain.
func (n *Node) gc() {
	for inst, ic := range n.seen {
		if ic.used < RegexInstCompact/2 {
			delete(n.seen, inst)
		} else {
			ic.used = 0
		}
	}
	n.used = 0
}

func (n *Node) evalAggregate() error {
	left := n.Left
	switch n.Kind {
	case KCount:
		n.values = []Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeInt32, I32: int32(len(left.values))}}}
		return nil
	case KScalar:
		if len(left.values) == 0 {
			n.values = nil
			return nil
		}
		n.values = []Value{{Inst: pdu.NullInstance, Atom: left.values[0].Atom}}
		return nil
	}
	if len(left.values) == 0 {
		n.values = nil
		return nil
	}
	switch n.Kind {
	case KAvg:
		sum := 0.0
		for _, v := range left.values {
			sum += v.Atom.AsFloat64()
		}
		n.values = []Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeFloat, F32: float32(sum / float64(len(left.values)))}}}
	case KSum:
		n.values = []Value{{Inst: pdu.NullInstance, Atom: sumAtoms(left.values, n.Desc.Type)}}
	case KMax:
		best := left.values[0].Atom
		for _, v := range left.values[1:] {
			if v.Atom.AsFloat64() > best.AsFloat64() {
				best = v.Atom
			}
		}
		n.values = []Value{{Inst: pdu.NullInstance, Atom: best}}
	case KMin:
		best := left.values[0].Atom
		for _, v := range left.values[1:] {
			if v.Atom.AsFloat64() < best.AsFloat64() {
				best = v.Atom
			}
		}
		n.values = []Value{{Inst: pdu.NullInstance, Atom: best}}
	}
	return nil
}

func sumAtoms(values []Value, t Type) Atom {
	switch t {
	case TypeInt32:
		var s int32
		for _, v := range values {
			s += v.Atom.I32
		}
		return Atom{Type: t, I32: s}
	case TypeUint32:
		var s uint32
		for _, v := range values {
			s += v.Atom.U32
		}
		return Atom{Type: t, U32: s}
	case TypeInt64:
		var s int64
		for _, v := range values {
			s += v.Atom.I64
		}
		return Atom{Type: t, I64: s}
	case TypeUint64:
		var s uint64
		for _, v := range values {
			s += v.Atom.U64
		}
		return Atom{Type: t, U64: s}
	case TypeFloat:
		var s float32
		for _, v := range values {
			s += v.Atom.F32
		}
		return Atom{Type: t, F32: s}
	default:
		var s float64
		for _, v := range values {
			s += v.Atom.AsFloat64()
		}
		return Atom{Type: TypeDouble, F64: s}
	}
}

// Advance rotates the node's current value list into lastValues when
// SaveLast is set (a Delta/Rate ancestor's left operand), discarding
// the prior history; called by the engine once per fetch after the
// whole tree has been evaluated, mirroring free_ivlist's "save_last"
// branch.
func (n *Node) Advance() {
	if n.SaveLast {
		n.lastValues = n.values
	}
	if n.Left != nil {
		n.Left.Advance()
	}
	if n.Right != nil {
		n.Right.Advance()
	}
}
