package archive

import (
	"encoding/binary"
	"testing"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/stretchr/testify/require"
)

func appendRecord(buf []byte, typ RecordType, body []byte) []byte {
	length := uint32(8 + len(body) + 4)
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], length)
	binary.BigEndian.PutUint32(header[4:8], uint32(typ))
	buf = append(buf, header...)
	buf = append(buf, body...)
	trailer := make([]byte, 4)
	binary.BigEndian.PutUint32(trailer, length)
	return append(buf, trailer...)
}

func descBody(pmid uint32, names ...string) []byte {
	d := wire.Descriptor{PMID: pmid, Type: 0, Indom: uint32(pdu.NullInstDom), Sem: 0}
	body := append([]byte(nil), EncodeDesc(d)...)
	nameCount := make([]byte, 4)
	binary.BigEndian.PutUint32(nameCount, uint32(len(names)))
	body = append(body, nameCount...)
	for _, n := range names {
		l := make([]byte, 4)
		binary.BigEndian.PutUint32(l, uint32(len(n)))
		body = append(body, l...)
		body = append(body, []byte(n)...)
	}
	return body
}

func indomBody(stamp wire.CurrentTimestamp, indom pdu.InstDomID, entries []indomEntry) []byte {
	body := make([]byte, 20)
	wire.PutCurrentTimestamp(body[0:12], stamp)
	binary.BigEndian.PutUint32(body[12:16], uint32(indom))
	binary.BigEndian.PutUint32(body[16:20], uint32(len(entries)))
	for _, e := range entries {
		eb := make([]byte, 8)
		binary.BigEndian.PutUint32(eb[0:4], uint32(e.Inst))
		binary.BigEndian.PutUint32(eb[4:8], uint32(len(e.Name)))
		body = append(body, eb...)
		body = append(body, []byte(e.Name)...)
	}
	return body
}

func TestStoreLoadDescAndPMNS(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, RecDesc, descBody(42, "disk.dev.read", "disk.dev.read_alias"))

	s := NewStore()
	require.NoError(t, s.Load(buf))

	d, ok := s.LookupDesc(42)
	require.True(t, ok)
	require.Equal(t, uint32(42), d.PMID)

	id, ok := s.LookupPMID("disk.dev.read")
	require.True(t, ok)
	require.Equal(t, pdu.MetricID(42), id)
	require.ElementsMatch(t, []string{"disk.dev.read", "disk.dev.read_alias"}, s.Names(42))
}

func TestStoreRejectsConflictingRebind(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, RecDesc, descBody(7, "a.b.c"))
	d2 := wire.Descriptor{PMID: 7, Type: 3, Indom: uint32(pdu.NullInstDom), Sem: 0}
	body2 := append([]byte(nil), EncodeDesc(d2)...)
	body2 = append(body2, 0, 0, 0, 0)
	buf = appendRecord(buf, RecDesc, body2)

	s := NewStore()
	err := s.Load(buf)
	require.Error(t, err)
}

func TestStoreIndomDuplicateSuppression(t *testing.T) {
	indom := pdu.NewInstDomID(60, 1, false)
	entries := []indomEntry{{Inst: 0, Name: "cpu0"}, {Inst: 1, Name: "cpu1"}}

	var buf []byte
	buf = appendRecord(buf, RecIndom, indomBody(wire.CurrentTimestamp{Sec: 1}, indom, entries))
	buf = appendRecord(buf, RecIndom, indomBody(wire.CurrentTimestamp{Sec: 2}, indom, entries))

	s := NewStore()
	require.NoError(t, s.Load(buf))
	require.Len(t, s.indoms[indom], 1, "semantically identical full records should collapse to one")

	insts, err := s.Instances(indom, wire.CurrentTimestamp{Sec: 2})
	require.NoError(t, err)
	require.Len(t, insts, 2)
}

func TestStoreIndomDeltaReconstruction(t *testing.T) {
	indom := pdu.NewInstDomID(60, 1, false)
	full := []indomEntry{{Inst: 0, Name: "cpu0"}, {Inst: 1, Name: "cpu1"}}
	delta := []indomEntry{{Inst: 1, Name: ""}, {Inst: 2, Name: "cpu2"}} // remove cpu1, add cpu2

	var buf []byte
	buf = appendRecord(buf, RecIndom, indomBody(wire.CurrentTimestamp{Sec: 1}, indom, full))
	buf = appendRecord(buf, RecIndomDelta, indomBody(wire.CurrentTimestamp{Sec: 2}, indom, delta))

	s := NewStore()
	require.NoError(t, s.Load(buf))

	insts, err := s.Instances(indom, wire.CurrentTimestamp{Sec: 2})
	require.NoError(t, err)
	byInst := make(map[pdu.InstanceID]string)
	for _, i := range insts {
		byInst[i.Inst] = i.Name
	}
	require.Equal(t, "cpu0", byInst[0])
	require.Equal(t, "cpu2", byInst[2])
	_, stillThere := byInst[1]
	require.False(t, stillThere)

	// earlier lookup still sees the pre-delta snapshot
	older, err := s.Instances(indom, wire.CurrentTimestamp{Sec: 1})
	require.NoError(t, err)
	require.Len(t, older, 2)
}

func TestStoreLabelDedupDropsAdjacentIdenticalNewerEntry(t *testing.T) {
	key := labelKey{Type: 1, ID: 99}
	sameBytes := []byte(`{"a":1}`)
	diffBytes := []byte(`{"a":2}`)

	var buf []byte
	buf = appendRecord(buf, RecLabel, labelBody(wire.CurrentTimestamp{Sec: 1}, key, diffBytes))
	buf = appendRecord(buf, RecLabel, labelBody(wire.CurrentTimestamp{Sec: 2}, key, sameBytes))
	buf = appendRecord(buf, RecLabel, labelBody(wire.CurrentTimestamp{Sec: 3}, key, sameBytes))

	s := NewStore()
	require.NoError(t, s.Load(buf))
	require.Len(t, s.labels[key], 2, "bit-identical adjacent newer entry should be dropped")

	v, ok := s.Label(1, 99, wire.CurrentTimestamp{Sec: 3})
	require.True(t, ok)
	require.Equal(t, sameBytes, v)
}

func labelBody(stamp wire.CurrentTimestamp, key labelKey, payload []byte) []byte {
	body := make([]byte, 20)
	wire.PutCurrentTimestamp(body[0:12], stamp)
	binary.BigEndian.PutUint32(body[12:16], uint32(key.Type))
	binary.BigEndian.PutUint32(body[16:20], key.ID)
	return append(body, payload...)
}

func TestStoreHelpText(t *testing.T) {
	textBody := pdu.EncodeText(pdu.TextResult{ID: 42, Type: pdu.TextPMID | pdu.TextOneLine, Text: "bytes read"})
	var buf []byte
	buf = appendRecord(buf, RecText, textBody)

	s := NewStore()
	require.NoError(t, s.Load(buf))
	text, ok := s.HelpText(pdu.TextPMID|pdu.TextOneLine, 42)
	require.True(t, ok)
	require.Equal(t, "bytes read", text)
}

func TestScanRecordsRejectsBadTrailer(t *testing.T) {
	buf := appendRecord(nil, RecText, []byte("whatever"))
	buf[len(buf)-1] ^= 0xff
	_, err := scanRecords(buf)
	require.Error(t, err)
}
