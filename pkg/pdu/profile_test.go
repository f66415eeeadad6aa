package pdu

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pmerr"
	"github.com/stretchr/testify/require"
)

func TestProfileEncodeDecodeRoundTrip(t *testing.T) {
	// Scenario S1: one indom excluded except for three named instances.
	p := Profile{
		CtxSlot:     0,
		GlobalState: Include,
		Entries: []ProfileEntry{
			{Indom: 0x40000001, State: Exclude, Instances: []InstanceID{3, 7, 1}},
		},
	}
	body := EncodeProfile(p)
	require.Len(t, body, 56-12) // S1: 56-byte frame, 12-byte header

	got, err := DecodeProfile(body)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestProfileEncodeDecodeEmpty(t *testing.T) {
	p := Profile{CtxSlot: 5, GlobalState: Include}
	body := EncodeProfile(p)
	require.Len(t, body, profileHeaderSize)

	got, err := DecodeProfile(body)
	require.NoError(t, err)
	require.Equal(t, int32(5), got.CtxSlot)
	require.Empty(t, got.Entries)
}

func TestDecodeProfileRejectsTruncatedInstances(t *testing.T) {
	body := EncodeProfile(Profile{
		Entries: []ProfileEntry{{Indom: 1, State: Include, Instances: []InstanceID{1, 2, 3}}},
	})
	_, err := DecodeProfile(body[:len(body)-4]) // chop off the last instance id
	require.ErrorIs(t, err, pmerr.ErrProtocol)
}
