package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextReqRoundTrip(t *testing.T) {
	r := TextReq{ID: 0x40000001, Type: TextPMID | TextOneLine}
	body := EncodeTextReq(r)
	got, err := DecodeTextReq(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestTextResultRoundTrip(t *testing.T) {
	r := TextResult{ID: 7, Type: TextIndom | TextFull, Text: "disk controller instances"}
	body := EncodeText(r)
	got, err := DecodeText(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestTextResultEmptyTextRoundTrip(t *testing.T) {
	r := TextResult{ID: 7, Type: TextPMID | TextOneLine, Text: ""}
	body := EncodeText(r)
	got, err := DecodeText(body)
	require.NoError(t, err)
	require.Equal(t, r, got)
}
