// Package archive implements component E: the on-disk, append-only
// archive metadata log and the in-memory hashed indexes built from it
// at open. Grounded on original_source/src/libpcp/src/logmeta.c for
// the record layout and reconstruction/suppression rules, and on
// pkg/archive/fsBackend.go / sqliteBackend.go / s3Backend.go for the
// three-backend shape this package adapts (fs primary, sqlite-backed
// catalog, s3 remote fetch).
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// RecordType tags one archive metadata record.
type RecordType uint32

const (
	RecDesc       RecordType = 1
	RecIndomV2    RecordType = 2 // legacy 32-bit timestamp
	RecLabelV2    RecordType = 3 // legacy 32-bit timestamp
	RecText       RecordType = 4
	RecIndom      RecordType = 5 // current, 64-bit timestamp
	RecIndomDelta RecordType = 6
	RecLabel      RecordType = 7 // current, 64-bit timestamp
)

// rawRecord is one decoded {len,type,body,len} frame, prior to
// type-specific interpretation.
type rawRecord struct {
	Type RecordType
	Body []byte
}

// scanRecords walks the archive metadata log from the first byte of
// data, yielding each record's type and body. It skips no label-record
// prefix: whatever starts data is read as a {len,type,body,len} record,
// so a leading label record reaches Load, which rejects its type. A
// mismatched trailing length check ends the scan with pmerr.ErrIPC,
// matching the original's redundancy check on every record footer.
func scanRecords(data []byte) ([]rawRecord, error) {
	var records []rawRecord
	off := 0
	for off < len(data) {
		if off+8 > len(data) {
			return nil, fmt.Errorf("archive record header truncated at offset %d: %w", off, pmerr.ErrLogRec)
		}
		length := binary.BigEndian.Uint32(data[off : off+4])
		typ := RecordType(binary.BigEndian.Uint32(data[off+4 : off+8]))
		if length < 8 || off+int(length) > len(data) {
			return nil, fmt.Errorf("archive record length %d invalid at offset %d: %w", length, off, pmerr.ErrLogRec)
		}
		bodyEnd := off + int(length) - 4
		body := data[off+8 : bodyEnd]
		trailer := binary.BigEndian.Uint32(data[bodyEnd : off+int(length)])
		if trailer != length {
			return nil, fmt.Errorf("archive record trailing length %d != leading %d at offset %d: %w", trailer, length, off, pmerr.ErrIPC)
		}
		records = append(records, rawRecord{Type: typ, Body: body})
		off += int(length)
	}
	return records, nil
}

// indomEntry is one (instance, name) binding within a full or delta
// indom record. An empty Name within a delta record means "remove
// this instance" (spec §4.E).
type indomEntry struct {
	Inst pdu.InstanceID
	Name string
}

// indomRecord is one timestamped entry in an instance domain's
// reverse-chronological history.
type indomRecord struct {
	Stamp   wire.CurrentTimestamp
	IsDelta bool
	Entries []indomEntry // full set if !IsDelta, sparse ops if IsDelta
}

func decodeIndomRecord(body []byte, isDelta bool, legacy bool) (indomRecord, pdu.InstDomID, error) {
	if legacy {
		return decodeIndomV2(body)
	}
	return decodeIndomCurrent(body, isDelta)
}

// decodeIndomCurrent parses the current (64-bit timestamp) full or
// delta indom record: sec(8) + nsec(4) + indom(4) + numinst(4), then
// numinst * {inst(4), namelen(4), name(namelen bytes, unpadded)} — a zero namelen
// within a delta record means removal.
func decodeIndomCurrent(body []byte, isDelta bool) (indomRecord, pdu.InstDomID, error) {
	if len(body) < 20 {
		return indomRecord{}, 0, fmt.Errorf("indom record too short: %w", pmerr.ErrLogRec)
	}
	rec := indomRecord{
		Stamp:   wire.GetCurrentTimestamp(body[0:12]),
		IsDelta: isDelta,
	}
	indom := pdu.InstDomID(binary.BigEndian.Uint32(body[12:16]))
	numInst := binary.BigEndian.Uint32(body[16:20])

	off := 20
	for i := uint32(0); i < numInst; i++ {
		if off+8 > len(body) {
			return indomRecord{}, 0, fmt.Errorf("indom record entry %d truncated: %w", i, pmerr.ErrLogRec)
		}
		inst := pdu.InstanceID(binary.BigEndian.Uint32(body[off : off+4]))
		nameLen := binary.BigEndian.Uint32(body[off+4 : off+8])
		off += 8
		need := off + int(nameLen)
		if need > len(body) {
			return indomRecord{}, 0, fmt.Errorf("indom record entry %d name truncated: %w", i, pmerr.ErrLogRec)
		}
		name := string(body[off:need])
		off = need
		rec.Entries = append(rec.Entries, indomEntry{Inst: inst, Name: name})
	}
	return rec, indom, nil
}

// decodeIndomV2 parses the legacy (32-bit timestamp) full indom
// record: sec(4) + usec(4) + indom(4) + numinst(4), same entry shape.
func decodeIndomV2(body []byte) (indomRecord, pdu.InstDomID, error) {
	if len(body) < 16 {
		return indomRecord{}, 0, fmt.Errorf("legacy indom record too short: %w", pmerr.ErrLogRec)
	}
	rec := indomRecord{Stamp: wire.GetLegacyTimestamp(body[0:8]).ToCurrent()}
	indom := pdu.InstDomID(binary.BigEndian.Uint32(body[8:12]))
	numInst := binary.BigEndian.Uint32(body[12:16])

	off := 16
	for i := uint32(0); i < numInst; i++ {
		if off+8 > len(body) {
			return indomRecord{}, 0, fmt.Errorf("legacy indom record entry %d truncated: %w", i, pmerr.ErrLogRec)
		}
		inst := pdu.InstanceID(binary.BigEndian.Uint32(body[off : off+4]))
		nameLen := binary.BigEndian.Uint32(body[off+4 : off+8])
		off += 8
		need := off + int(nameLen)
		if need > len(body) {
			return indomRecord{}, 0, fmt.Errorf("legacy indom record entry %d name truncated: %w", i, pmerr.ErrLogRec)
		}
		rec.Entries = append(rec.Entries, indomEntry{Inst: inst, Name: string(body[off:need])})
		off = need
	}
	return rec, indom, nil
}

// labelRecord is one timestamped label set for a (type, id) pair.
type labelRecord struct {
	Stamp wire.CurrentTimestamp
	Bytes []byte // opaque, compared bit-for-bit during de-duplication
}

type labelKey struct {
	Type int32
	ID   uint32
}

func decodeLabelRecord(body []byte, legacy bool) (labelRecord, labelKey, error) {
	if legacy {
		if len(body) < 16 {
			return labelRecord{}, labelKey{}, fmt.Errorf("legacy label record too short: %w", pmerr.ErrLogRec)
		}
		ts := wire.GetLegacyTimestamp(body[0:8]).ToCurrent()
		key := labelKey{Type: int32(binary.BigEndian.Uint32(body[8:12])), ID: binary.BigEndian.Uint32(body[12:16])}
		return labelRecord{Stamp: ts, Bytes: append([]byte(nil), body[16:]...)}, key, nil
	}
	if len(body) < 20 {
		return labelRecord{}, labelKey{}, fmt.Errorf("label record too short: %w", pmerr.ErrLogRec)
	}
	ts := wire.GetCurrentTimestamp(body[0:12])
	key := labelKey{Type: int32(binary.BigEndian.Uint32(body[12:16])), ID: binary.BigEndian.Uint32(body[16:20])}
	return labelRecord{Stamp: ts, Bytes: append([]byte(nil), body[20:]...)}, key, nil
}

type helpKey struct {
	Type pdu.TextType
	ID   uint32
}

func decodeTextRecord(body []byte) (helpKey, string, error) {
	r, err := decodeTextRecordBody(body)
	if err != nil {
		return helpKey{}, "", err
	}
	return helpKey{Type: r.Type, ID: r.ID}, r.Text, nil
}

// decodeTextRecordBody reuses the wire TEXT PDU body layout: the
// archive help-text record is byte-identical to the TEXT PDU payload.
func decodeTextRecordBody(body []byte) (pdu.TextResult, error) {
	return pdu.DecodeText(body)
}
