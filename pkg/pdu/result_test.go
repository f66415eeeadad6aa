package pdu

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

func TestResultRoundTripInsitu(t *testing.T) {
	r := Result{
		Timestamp: wire.CurrentTimestamp{Sec: 1700000000, NSec: 123456},
		ValueSets: []ValueSet{
			{
				PMID:   0x40000001,
				NumVal: 2,
				ValFmt: ValFmtInsitu,
				Values: []Value{
					{Inst: 0, Insitu: 42},
					{Inst: 1, Insitu: -7},
				},
			},
		},
	}
	body := EncodeResult(r)
	got, err := DecodeResult(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestResultRoundTripOutOfLine(t *testing.T) {
	r := Result{
		Timestamp: wire.CurrentTimestamp{Sec: 1700000000, NSec: 0},
		ValueSets: []ValueSet{
			{
				PMID:   0x40000002,
				NumVal: 1,
				ValFmt: ValFmtOutOfLine,
				Values: []Value{
					{Inst: NullInstance, VType: 7, VData: []byte("a string value")},
				},
			},
		},
	}
	body := EncodeResult(r)
	got, err := DecodeResult(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestResultPerMetricErrorCarriesNoValues(t *testing.T) {
	r := Result{
		ValueSets: []ValueSet{
			{PMID: 0x40000003, NumVal: -12, ValFmt: ValFmtInsitu},
		},
	}
	body := EncodeResult(r)
	got, err := DecodeResult(body)
	require.NoError(t, err)
	require.Equal(t, int32(-12), got.ValueSets[0].NumVal)
	require.Empty(t, got.ValueSets[0].Values)
}
