package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// ValueFormat says whether a value set's members are packed in situ
// (a 32-bit value fits directly in the pmValue slot) or carry an
// out-of-line, typed, length-prefixed payload.
type ValueFormat int32

const (
	ValFmtInsitu ValueFormat = iota
	ValFmtOutOfLine
)

// Value is one instance's reading within a ValueSet.
type Value struct {
	Inst InstanceID

	// Insitu holds the packed 32-bit reading when the owning ValueSet's
	// ValFmt is ValFmtInsitu.
	Insitu int32

	// VType/VData carry an out-of-line payload (string, double,
	// 64-bit int, or aggregate) when ValFmt is ValFmtOutOfLine. VType
	// is a wire.Descriptor.Type constant.
	VType int32
	VData []byte
}

// ValueSet holds every instance's reading for one metric. A negative
// NumVal is a per-metric fetch error code (spec §4 "per-metric errors
// inside an otherwise successful FETCH") and carries no Values.
type ValueSet struct {
	PMID   MetricID
	NumVal int32
	ValFmt ValueFormat
	Values []Value
}

// Result is the RESULT PDU payload returned by a FETCH.
type Result struct {
	Timestamp wire.CurrentTimestamp
	ValueSets []ValueSet
}

// EncodeResult produces the wire body for a RESULT PDU.
func EncodeResult(r Result) []byte {
	size := 12 + 4
	for _, vs := range r.ValueSets {
		size += 12
		if vs.NumVal > 0 {
			for _, v := range vs.Values {
				if vs.ValFmt == ValFmtInsitu {
					size += 8
				} else {
					size += 12 + padLen(len(v.VData))
				}
			}
		}
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Timestamp.Sec))
	binary.BigEndian.PutUint32(buf[8:12], r.Timestamp.NSec)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(r.ValueSets)))

	off := 16
	for _, vs := range r.ValueSets {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(vs.PMID))
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(vs.NumVal))
		binary.BigEndian.PutUint32(buf[off+8:off+12], uint32(vs.ValFmt))
		off += 12
		if vs.NumVal <= 0 {
			continue
		}
		for _, v := range vs.Values {
			binary.BigEndian.PutUint32(buf[off:off+4], uint32(v.Inst))
			off += 4
			if vs.ValFmt == ValFmtInsitu {
				binary.BigEndian.PutUint32(buf[off:off+4], uint32(v.Insitu))
				off += 4
				continue
			}
			binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(v.VData)))
			binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(v.VType))
			off += 8
			copy(buf[off:off+len(v.VData)], v.VData)
			off += padLen(len(v.VData))
		}
	}
	return buf
}

// DecodeResult parses a RESULT PDU body.
func DecodeResult(body []byte) (Result, error) {
	if len(body) < 16 {
		return Result{}, fmt.Errorf("result body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	r := Result{
		Timestamp: wire.CurrentTimestamp{
			Sec:  int64(binary.BigEndian.Uint64(body[0:8])),
			NSec: binary.BigEndian.Uint32(body[8:12]),
		},
	}
	numPMID := binary.BigEndian.Uint32(body[12:16])
	r.ValueSets = make([]ValueSet, 0, numPMID)

	off := 16
	for i := uint32(0); i < numPMID; i++ {
		if off+12 > len(body) {
			return Result{}, fmt.Errorf("value set %d header truncated: %w", i, pmerr.ErrProtocol)
		}
		vs := ValueSet{
			PMID:   MetricID(binary.BigEndian.Uint32(body[off : off+4])),
			NumVal: int32(binary.BigEndian.Uint32(body[off+4 : off+8])),
			ValFmt: ValueFormat(binary.BigEndian.Uint32(body[off+8 : off+12])),
		}
		off += 12
		if vs.NumVal > 0 {
			vs.Values = make([]Value, 0, vs.NumVal)
			for j := int32(0); j < vs.NumVal; j++ {
				if off+4 > len(body) {
					return Result{}, fmt.Errorf("value set %d value %d truncated: %w", i, j, pmerr.ErrProtocol)
				}
				inst := InstanceID(binary.BigEndian.Uint32(body[off : off+4]))
				off += 4
				v := Value{Inst: inst}
				if vs.ValFmt == ValFmtInsitu {
					if off+4 > len(body) {
						return Result{}, fmt.Errorf("value set %d value %d insitu truncated: %w", i, j, pmerr.ErrProtocol)
					}
					v.Insitu = int32(binary.BigEndian.Uint32(body[off : off+4]))
					off += 4
				} else {
					if off+8 > len(body) {
						return Result{}, fmt.Errorf("value set %d value %d header truncated: %w", i, j, pmerr.ErrProtocol)
					}
					dataLen := binary.BigEndian.Uint32(body[off : off+4])
					v.VType = int32(binary.BigEndian.Uint32(body[off+4 : off+8]))
					off += 8
					need := off + padLen(int(dataLen))
					if need > len(body) {
						return Result{}, fmt.Errorf("value set %d value %d data truncated: %w", i, j, pmerr.ErrProtocol)
					}
					v.VData = make([]byte, dataLen)
					copy(v.VData, body[off:off+int(dataLen)])
					off += padLen(int(dataLen))
				}
				vs.Values = append(vs.Values, v)
			}
		}
		r.ValueSets = append(r.ValueSets, vs)
	}
	return r, nil
}
