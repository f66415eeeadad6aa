package expr

import (
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

// Metric is a bound derived-metric definition: a root PMID together
// with the parsed expression tree that computes its values.
type Metric struct {
	PMID  pdu.MetricID
	Desc  wire.Descriptor
	Root  *Node
	bound bool
}

// Engine holds every derived metric known to one context (spec: "for
// the lifetime of its context"). Binding is lazy: Define only records a
// definition, and Prefetch walks its tree for real-metric operand ids
// on every fetch that mentions it.
type Engine struct {
	catalog Catalog
	metrics map[pdu.MetricID]*Metric
}

func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog, metrics: make(map[pdu.MetricID]*Metric)}
}

// Define registers a derived metric. Binding failure (an operand real
// metric that does not exist) is deferred to first fetch and fails
// soft per spec: an unbindable node simply yields zero values.
func (e *Engine) Define(m *Metric) {
	e.metrics[m.PMID] = m
}

func (e *Engine) Lookup(id pdu.MetricID) (*Metric, bool) {
	m, ok := e.metrics[id]
	return m, ok
}

// Prefetch walks pmidlist for derived metrics and returns the combined
// list (caller's ids followed by any extra real-metric operand ids)
// plus whether any derived metric was present at all; with no derived
// metric in pmidlist it returns nil, false. Operand ids
// already in pmidlist, or repeated as leaves within one expression
// tree, appear at most once in the extra tail.
func (e *Engine) Prefetch(pmidlist []pdu.MetricID) (combined []pdu.MetricID, hasDerived bool) {
	seen := make(map[pdu.MetricID]bool, len(pmidlist))
	for _, id := range pmidlist {
		seen[id] = true
	}

	var extra []pdu.MetricID
	extraSeen := make(map[pdu.MetricID]bool)
	for _, id := range pmidlist {
		if !id.Derived() {
			continue
		}
		m, ok := e.metrics[id]
		if !ok {
			continue
		}
		hasDerived = true
		if m.Root == nil {
			continue
		}
		for _, opID := range collectNames(m.Root) {
			if seen[opID] || extraSeen[opID] {
				continue
			}
			extraSeen[opID] = true
			extra = append(extra, opID)
		}
	}
	if len(extra) == 0 {
		if hasDerived {
			return pmidlist, true
		}
		return nil, false
	}
	combined = make([]pdu.MetricID, 0, len(pmidlist)+len(extra))
	combined = append(combined, pmidlist...)
	combined = append(combined, extra...)
	return combined, true
}

func collectNames(n *Node) []pdu.MetricID {
	var ids []pdu.MetricID
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		walk(n.Left)
		walk(n.Right)
		if n.Kind == KName {
			ids = append(ids, n.PMID)
		}
	}
	walk(n)
	return ids
}

// Postfetch builds a new Result from a fetched one: for every requested
// (non-extra) pmid that is derived, its value set is replaced by the
// expression tree's computed values, packed insitu when the derived
// metric's declared type is 32-bit and out-of-line (tagged by each
// value's own type) otherwise; real-metric slots pass through
// unchanged. The extra
// operand-only value sets appended by Prefetch are dropped from the
// final result, same as the original leaving derived ids in the
// combined list so post-processing can find them by position then
// discarding anything past the caller's original count.
func (e *Engine) Postfetch(requested []pdu.MetricID, result pdu.Result, ts wire.CurrentTimestamp) pdu.Result {
	byPMID := make(map[pdu.MetricID]pdu.ValueSet, len(result.ValueSets))
	for _, vs := range result.ValueSets {
		byPMID[vs.PMID] = vs
	}

	leafValues := func(id pdu.MetricID) ([]Value, error) {
		vs, ok := byPMID[id]
		if !ok || vs.NumVal <= 0 {
			return nil, ErrNoValues
		}
		values := make([]Value, 0, len(vs.Values))
		for _, v := range vs.Values {
			values = append(values, Value{Inst: v.Inst, Atom: atomFromWire(vs, v)})
		}
		return values, nil
	}

	out := pdu.Result{Timestamp: result.Timestamp, ValueSets: make([]pdu.ValueSet, 0, len(requested))}
	for _, id := range requested {
		if !id.Derived() {
			if vs, ok := byPMID[id]; ok {
				out.ValueSets = append(out.ValueSets, vs)
			}
			continue
		}
		m, ok := e.metrics[id]
		if !ok {
			continue
		}
		bindNames(m.Root, leafValues)
		_ = m.Root.Eval(e.catalog, ts)
		m.Root.Advance()
		out.ValueSets = append(out.ValueSets, valueSetFromNode(id, Type(m.Desc.Type), m.Root))
	}
	return out
}

func bindNames(n *Node, leafValues func(pdu.MetricID) ([]Value, error)) {
	if n == nil {
		return
	}
	bindNames(n.Left, leafValues)
	bindNames(n.Right, leafValues)
	if n.Kind == KName {
		values, err := leafValues(n.PMID)
		n.SetLeafValues(values, err)
	}
}

func atomFromWire(vs pdu.ValueSet, v pdu.Value) Atom {
	if vs.ValFmt == pdu.ValFmtInsitu {
		return Atom{Type: TypeInt32, I32: v.Insitu}
	}
	switch v.VType {
	case 5: // PM_TYPE_DOUBLE-equivalent wire tag
		return Atom{Type: TypeDouble, F64: wire.Float64(v.VData)}
	case 4: // PM_TYPE_FLOAT-equivalent
		return Atom{Type: TypeFloat, F32: wire.Float32(v.VData)}
	case 3: // PM_TYPE_64-equivalent
		return Atom{Type: TypeInt64, I64: wire.Int64(v.VData)}
	case 7:
		return Atom{Type: TypeString, Str: string(v.VData)}
	}
	return Atom{Type: TypeUint64, U64: uint64(wire.Int64(v.VData))}
}

func valueSetFromNode(id pdu.MetricID, t Type, n *Node) pdu.ValueSet {
	if n.err == ErrNoValues {
		return pdu.ValueSet{PMID: id, NumVal: 0}
	}
	if n.err != nil {
		return pdu.ValueSet{PMID: id, NumVal: -1}
	}
	vs := pdu.ValueSet{PMID: id, NumVal: int32(len(n.values))}
	if len(n.values) == 0 {
		return vs
	}
	if t == TypeInt32 || t == TypeUint32 {
		vs.ValFmt = pdu.ValFmtInsitu
		for _, v := range n.values {
			var i int32
			switch v.Atom.Type {
			case TypeInt32:
				i = v.Atom.I32
			case TypeUint32:
				i = int32(v.Atom.U32)
			}
			vs.Values = append(vs.Values, pdu.Value{Inst: v.Inst, Insitu: i})
		}
		return vs
	}
	vs.ValFmt = pdu.ValFmtOutOfLine
	for _, v := range n.values {
		var data []byte
		vtype := int32(0)
		switch v.Atom.Type {
		case TypeInt64:
			data = make([]byte, 8)
			wire.PutInt64(data, v.Atom.I64)
			vtype = 3
		case TypeUint64:
			data = make([]byte, 8)
			wire.PutInt64(data, int64(v.Atom.U64))
			vtype = 3
		case TypeFloat:
			data = make([]byte, 4)
			wire.PutFloat32(data, v.Atom.F32)
			vtype = 4
		case TypeDouble:
			data = make([]byte, 8)
			wire.PutFloat64(data, v.Atom.F64)
			vtype = 5
		case TypeString:
			data = []byte(v.Atom.Str)
			vtype = 7
		}
		vs.Values = append(vs.Values, pdu.Value{Inst: v.Inst, VType: vtype, VData: data})
	}
	return vs
}
