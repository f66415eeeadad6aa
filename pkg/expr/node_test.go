package expr

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	names map[pdu.InstanceID]string
}

func (c *fakeCatalog) InstanceName(indom pdu.InstDomID, inst pdu.InstanceID) (string, bool) {
	n, ok := c.names[inst]
	return n, ok
}

func (c *fakeCatalog) LookupInstance(indom pdu.InstDomID, name string) (pdu.InstanceID, bool) {
	for inst, n := range c.names {
		if n == name {
			return inst, true
		}
	}
	return pdu.NullInstance, false
}

func nameLeaf(pmid pdu.MetricID, t Type, indom pdu.InstDomID) *Node {
	return &Node{Kind: KName, PMID: pmid, Desc: Descriptor{Type: t, Indom: indom}}
}

func TestArithmeticPromotionU32Plus32(t *testing.T) {
	left := nameLeaf(1, TypeUint32, pdu.NullInstDom)
	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 10}}}, nil)
	right := nameLeaf(2, TypeInt32, pdu.NullInstDom)
	right.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeInt32, I32: 5}}}, nil)

	n := &Node{Kind: KPlus, Left: left, Right: right, Desc: Descriptor{Type: TypeInt64}}
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{}))
	require.Len(t, n.values, 1)
	require.Equal(t, TypeInt64, n.values[0].Atom.Type)
	require.Equal(t, int64(15), n.values[0].Atom.I64)
}

func TestDivideByZeroYieldsZero(t *testing.T) {
	left := nameLeaf(1, TypeDouble, pdu.NullInstDom)
	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeDouble, F64: 99}}}, nil)
	right := nameLeaf(2, TypeDouble, pdu.NullInstDom)
	right.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeDouble, F64: 0}}}, nil)

	n := &Node{Kind: KSlash, Left: left, Right: right, Desc: Descriptor{Type: TypeDouble}}
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{}))
	require.Equal(t, float64(0), n.values[0].Atom.F64)
}

func TestCountMapsChildErrorToZero(t *testing.T) {
	left := nameLeaf(1, TypeUint32, pdu.NullInstDom)
	left.SetLeafValues(nil, ErrNoValues)

	n := &Node{Kind: KCount, Left: left, Desc: Descriptor{Type: TypeInt32}}
	err := n.Eval(nil, wire.CurrentTimestamp{})
	require.NoError(t, err)
	require.Equal(t, int32(0), n.values[0].Atom.I32)
}

func TestDeltaComputesDifferenceAcrossFetches(t *testing.T) {
	left := nameLeaf(1, TypeUint32, pdu.NullInstDom)
	left.SaveLast = true
	n := &Node{Kind: KDelta, Left: left, Desc: Descriptor{Type: TypeUint32}}

	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 10}}}, nil)
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{Sec: 1}))
	n.Advance()

	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 16}}}, nil)
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{Sec: 2}))
	require.Equal(t, uint32(6), n.values[0].Atom.U32)
}

func TestRateDividesByElapsedTime(t *testing.T) {
	left := nameLeaf(1, TypeUint32, pdu.NullInstDom)
	left.SaveLast = true
	n := &Node{Kind: KRate, Left: left, Desc: Descriptor{Type: TypeDouble}}

	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 0}}}, nil)
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{Sec: 0}))
	n.Advance()

	left.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 100}}}, nil)
	require.NoError(t, n.Eval(nil, wire.CurrentTimestamp{Sec: 10}))
	require.InDelta(t, 10.0, n.values[0].Atom.F64, 0.0001)
}

func TestTernarySelectsBranchPerInstance(t *testing.T) {
	guard := nameLeaf(1, TypeUint32, pdu.NullInstDom)
	guard.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeUint32, U32: 0}}}, nil)
	then := nameLeaf(2, TypeInt32, pdu.NullInstDom)
	then.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeInt32, I32: 100}}}, nil)
	els := nameLeaf(3, TypeInt32, pdu.NullInstDom)
	els.SetLeafValues([]Value{{Inst: pdu.NullInstance, Atom: Atom{Type: TypeInt32, I32: 200}}}, nil)

	colon := &Node{Kind: KColon, Left: then, Right: els}
	quest := &Node{Kind: KQuest, Left: guard, Right: colon, Desc: Descriptor{Type: TypeInt32}}

	require.NoError(t, quest.Eval(nil, wire.CurrentTimestamp{}))
	require.Equal(t, int32(200), quest.values[0].Atom.I32)
}

func TestFilterInstRegexMatchesCanonicalName(t *testing.T) {
	cat := &fakeCatalog{names: map[pdu.InstanceID]string{0: "cpu0 thread", 1: "cpu1"}}
	target := nameLeaf(1, TypeUint32, 0x40000001)
	target.SetLeafValues([]Value{
		{Inst: 0, Atom: Atom{Type: TypeUint32, U32: 1}},
		{Inst: 1, Atom: Atom{Type: TypeUint32, U32: 2}},
	}, nil)

	pattern, err := NewPattern(PatternRegex, "^cpu0$")
	require.NoError(t, err)

	n := &Node{Kind: KFilterInst, Left: pattern, Right: target}
	require.NoError(t, n.Eval(cat, wire.CurrentTimestamp{}))
	require.Len(t, n.values, 1)
	require.Equal(t, pdu.InstanceID(0), n.values[0].Inst)
}

func TestRegexInstGCEvictsUnderusedInstances(t *testing.T) {
	cat := &fakeCatalog{names: map[pdu.InstanceID]string{0: "cpu0", 1: "cpu1"}}
	pattern, err := NewPattern(PatternRegex, "cpu0")
	require.NoError(t, err)
	target := nameLeaf(1, TypeUint32, 0x40000001)
	n := &Node{Kind: KFilterInst, Left: pattern, Right: target}

	for i := 0; i < RegexInstCompact; i++ {
		vals := []Value{{Inst: 0, Atom: Atom{Type: TypeUint32, U32: 1}}}
		if i == 0 {
			vals = append(vals, Value{Inst: 1, Atom: Atom{Type: TypeUint32, U32: 1}})
		}
		target.SetLeafValues(vals, nil)
		require.NoError(t, n.Eval(cat, wire.CurrentTimestamp{}))
	}
	_, stillTracked := pattern.seen[1]
	require.False(t, stillTracked)
	_, trackedCPU0 := pattern.seen[0]
	require.True(t, trackedCPU0)
}
