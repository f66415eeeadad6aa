package expr

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

func TestPrefetchAddsOperandMetricsOnce(t *testing.T) {
	e := NewEngine(&fakeCatalog{})
	derivedID := pdu.NewMetricID(250, 0, 1, true)
	opA := pdu.NewMetricID(60, 0, 1, false)
	opB := pdu.NewMetricID(60, 0, 2, false)

	tree := &Node{
		Kind: KPlus,
		Left: nameLeaf(opA, TypeUint32, pdu.NullInstDom),
		Right: &Node{
			Kind:  KPlus,
			Left:  nameLeaf(opA, TypeUint32, pdu.NullInstDom), // repeated leaf
			Right: nameLeaf(opB, TypeUint32, pdu.NullInstDom),
		},
	}
	e.Define(&Metric{PMID: derivedID, Desc: wire.Descriptor{PMID: uint32(derivedID)}, Root: tree})

	combined, hasDerived := e.Prefetch([]pdu.MetricID{derivedID})
	require.True(t, hasDerived)
	require.Equal(t, []pdu.MetricID{derivedID, opA, opB}, combined)
}

func TestPrefetchNoopWithoutDerivedMetrics(t *testing.T) {
	e := NewEngine(&fakeCatalog{})
	real := pdu.NewMetricID(60, 0, 1, false)
	combined, hasDerived := e.Prefetch([]pdu.MetricID{real})
	require.False(t, hasDerived)
	require.Nil(t, combined)
}

func TestPostfetchRewritesDerivedSlotAndPassesRealThrough(t *testing.T) {
	e := NewEngine(&fakeCatalog{})
	derivedID := pdu.NewMetricID(250, 0, 1, true)
	opA := pdu.NewMetricID(60, 0, 1, false)
	realID := pdu.NewMetricID(60, 0, 9, false)

	tree := &Node{
		Kind:  KPlus,
		Left:  nameLeaf(opA, TypeUint32, pdu.NullInstDom),
		Right: &Node{Kind: KInteger, Literal: "5", Desc: Descriptor{Type: TypeUint32}},
		Desc:  Descriptor{Type: TypeUint32},
	}
	e.Define(&Metric{PMID: derivedID, Desc: wire.Descriptor{PMID: uint32(derivedID), Type: int32(TypeUint32)}, Root: tree})

	result := pdu.Result{
		ValueSets: []pdu.ValueSet{
			{PMID: opA, NumVal: 1, ValFmt: pdu.ValFmtInsitu, Values: []pdu.Value{{Inst: pdu.NullInstance, Insitu: 10}}},
			{PMID: realID, NumVal: 1, ValFmt: pdu.ValFmtInsitu, Values: []pdu.Value{{Inst: pdu.NullInstance, Insitu: 42}}},
		},
	}

	out := e.Postfetch([]pdu.MetricID{realID, derivedID}, result, wire.CurrentTimestamp{})
	require.Len(t, out.ValueSets, 2)
	require.Equal(t, realID, out.ValueSets[0].PMID)
	require.Equal(t, int32(42), out.ValueSets[0].Values[0].Insitu)
	require.Equal(t, derivedID, out.ValueSets[1].PMID)
	require.Equal(t, int32(15), out.ValueSets[1].Values[0].Insitu)
}
