package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstanceReqRoundTrip(t *testing.T) {
	r := InstanceReq{Indom: 0x40000001, Inst: NullInstance, Name: "cpu0"}
	body := EncodeInstanceReq(r)
	got, err := DecodeInstanceReq(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestInstanceReqAllNullRoundTrip(t *testing.T) {
	r := InstanceReq{Indom: 0x40000001, Inst: NullInstance, Name: ""}
	body := EncodeInstanceReq(r)
	require.Len(t, body, 12)
	got, err := DecodeInstanceReq(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestInstanceResultRoundTrip(t *testing.T) {
	r := InstanceResult{
		Indom: 0x40000001,
		Instances: []Instance{
			{Inst: 0, Name: "cpu0"},
			{Inst: 1, Name: "cpu1"},
		},
	}
	body := EncodeInstance(r)
	got, err := DecodeInstance(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

// S2: an empty instance domain flattens to zero instances, not one
// null placeholder entry.
func TestInstanceResultEmptyDomainFlattens(t *testing.T) {
	r := InstanceResult{
		Indom:     0x40000002,
		Instances: []Instance{{Inst: NullInstance, Name: ""}},
	}
	body := EncodeInstance(r)
	require.Len(t, body, 8)

	got, err := DecodeInstance(body)
	require.NoError(t, err)
	require.Equal(t, InstDomID(0x40000002), got.Indom)
	require.Empty(t, got.Instances)
}
