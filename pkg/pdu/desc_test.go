package pdu

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

func TestDescRoundTrip(t *testing.T) {
	d := wire.Descriptor{
		PMID:  0x40000001,
		Type:  1, // PM_TYPE_U32-equivalent
		Indom: 0x40000002,
		Sem:   3,
		Units: wire.Units{DimTime: 1, ScaleTime: 2},
	}
	body := EncodeDesc(d)
	got, err := DecodeDesc(body)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestDescListRoundTrip(t *testing.T) {
	l := DescList{Descs: []wire.Descriptor{
		{PMID: 1, Type: 1, Indom: 0xffffffff, Sem: 1},
		{PMID: 2, Type: 5, Indom: 0xffffffff, Sem: 1},
	}}
	body := EncodeDescList(l)
	got, err := DecodeDescList(body)
	require.NoError(t, err)
	require.Equal(t, l, got)
}
