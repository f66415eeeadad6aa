package archive

import (
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, RecDesc, descBody(42, "disk.dev.read"))
	indom := pdu.NewInstDomID(60, 1, false)
	buf = appendRecord(buf, RecIndom, indomBody(wire.CurrentTimestamp{Sec: 1}, indom, []indomEntry{{Inst: 0, Name: "cpu0"}}))
	buf = appendRecord(buf, RecText, pdu.EncodeText(pdu.TextResult{ID: 42, Type: pdu.TextPMID, Text: "help"}))

	s := NewStore()
	require.NoError(t, s.Load(buf))

	snap := s.Snapshot()
	restored := LoadSnapshot(snap)

	d, ok := restored.LookupDesc(42)
	require.True(t, ok)
	require.Equal(t, uint32(42), d.PMID)

	insts, err := restored.Instances(indom, wire.CurrentTimestamp{Sec: 1})
	require.NoError(t, err)
	require.Len(t, insts, 1)
	require.Equal(t, "cpu0", insts[0].Name)

	text, ok := restored.HelpText(pdu.TextPMID, 42)
	require.True(t, ok)
	require.Equal(t, "help", text)
}
