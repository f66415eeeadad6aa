package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDListRoundTrip(t *testing.T) {
	l := IDList{IDs: []MetricID{1, 2, 3, 0xffffffff}}
	body := EncodeIDList(l)
	got, err := DecodeIDList(body)
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestIDListEmptyRoundTrip(t *testing.T) {
	l := IDList{}
	body := EncodeIDList(l)
	require.Len(t, body, 4)
	got, err := DecodeIDList(body)
	require.NoError(t, err)
	require.Empty(t, got.IDs)
}
