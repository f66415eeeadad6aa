// Package wire implements component A: byte-order and timestamp
// conversion for the scalars and composite records that cross the wire
// or land in an archive metadata record. Every multi-byte wire quantity
// is big-endian; composite values are converted in place, scalars are
// converted by value, mirroring the C source's __htonpmUnits-style
// helpers (original_source/src/libpcp/src/pdu.c and logmeta.c).
package wire

import (
	"encoding/binary"
	"math"
)

// Descriptor is the host-order in-memory form of a metric schema
// record's fixed-width fields (see pkg/pdu for the full typed PDU).
type Descriptor struct {
	PMID   uint32
	Type   int32
	Indom  uint32
	Sem    int32
	Units  Units
}

// Units packs the three-axis (space, time, count) dimension/scale
// unit struct exactly as the 32-bit pmUnits bitfield does:
// dimSpace:4 dimTime:4 dimCount:4 scaleSpace:6 scaleTime:6 scaleCount:6 pad:2
type Units struct {
	DimSpace, DimTime, DimCount       int8
	ScaleSpace, ScaleTime, ScaleCount int8
}

// Pack encodes Units into the wire's 32-bit bitfield representation.
func (u Units) Pack() uint32 {
	return uint32(uint8(u.DimSpace)&0xf)<<28 |
		uint32(uint8(u.DimTime)&0xf)<<24 |
		uint32(uint8(u.DimCount)&0xf)<<20 |
		uint32(uint8(u.ScaleSpace)&0x3f)<<14 |
		uint32(uint8(u.ScaleTime)&0x3f)<<8 |
		uint32(uint8(u.ScaleCount)&0x3f)<<2
}

// UnpackUnits decodes the wire's 32-bit pmUnits bitfield, sign-extending
// each 4-bit dimension field.
func UnpackUnits(w uint32) Units {
	signExtend4 := func(v uint32) int8 {
		v &= 0xf
		if v&0x8 != 0 {
			return int8(v) - 16
		}
		return int8(v)
	}
	return Units{
		DimSpace:   signExtend4(w >> 28),
		DimTime:    signExtend4(w >> 24),
		DimCount:   signExtend4(w >> 20),
		ScaleSpace: int8((w >> 14) & 0x3f),
		ScaleTime:  int8((w >> 8) & 0x3f),
		ScaleCount: int8((w >> 2) & 0x3f),
	}
}

// Equal reports whether two Units describe the same dimensions and
// scales (used by the archive store's LOGCHANGEUNITS check).
func (u Units) Equal(o Units) bool { return u.Pack() == o.Pack() }

// Credential is the wire form of a PDU_AUTH credential/capability record.
type Credential struct {
	Type  uint32
	Flags uint32
	Extra uint32
}

// PackCredential converts a Credential into its big-endian wire bytes.
func PackCredential(c Credential) [12]byte {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], c.Type)
	binary.BigEndian.PutUint32(b[4:8], c.Flags)
	binary.BigEndian.PutUint32(b[8:12], c.Extra)
	return b
}

// UnpackCredential is the inverse of PackCredential.
func UnpackCredential(b []byte) Credential {
	return Credential{
		Type:  binary.BigEndian.Uint32(b[0:4]),
		Flags: binary.BigEndian.Uint32(b[4:8]),
		Extra: binary.BigEndian.Uint32(b[8:12]),
	}
}

// Label is the wire form of one name/value JSON label entry's fixed
// prefix (the variable-length name/value bytes follow it, handled by
// the typed codec in pkg/pdu).
type Label struct {
	NameLen  uint16
	Flags    uint16
	ValueLen uint32
}

func PackLabel(l Label) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint16(b[0:2], l.NameLen)
	binary.BigEndian.PutUint16(b[2:4], l.Flags)
	binary.BigEndian.PutUint32(b[4:8], l.ValueLen)
	return b
}

func UnpackLabel(b []byte) Label {
	return Label{
		NameLen:  binary.BigEndian.Uint16(b[0:2]),
		Flags:    binary.BigEndian.Uint16(b[2:4]),
		ValueLen: binary.BigEndian.Uint32(b[4:8]),
	}
}

// --- scalar conversions -----------------------------------------------

func PutFloat32(b []byte, v float32) { binary.BigEndian.PutUint32(b, math.Float32bits(v)) }
func Float32(b []byte) float32       { return math.Float32frombits(binary.BigEndian.Uint32(b)) }

func PutFloat64(b []byte, v float64) { binary.BigEndian.PutUint64(b, math.Float64bits(v)) }
func Float64(b []byte) float64       { return math.Float64frombits(binary.BigEndian.Uint64(b)) }

func PutInt64(b []byte, v int64) { binary.BigEndian.PutUint64(b, uint64(v)) }
func Int64(b []byte) int64       { return int64(binary.BigEndian.Uint64(b)) }

// --- PDU header ---------------------------------------------------------

// Header is the fixed 12-byte PDU frame prefix: len:u32be | type:u32be |
// from:u32be. Type is non-negative on the wire; a negative decoded type
// is an IPC error (checked by the caller, pkg/pdu.Get).
type Header struct {
	Len  uint32
	Type int32
	From uint32
}

const HeaderSize = 12

func PutHeader(b []byte, h Header) {
	binary.BigEndian.PutUint32(b[0:4], h.Len)
	binary.BigEndian.PutUint32(b[4:8], uint32(h.Type))
	binary.BigEndian.PutUint32(b[8:12], h.From)
}

func GetHeader(b []byte) Header {
	return Header{
		Len:  binary.BigEndian.Uint32(b[0:4]),
		Type: int32(binary.BigEndian.Uint32(b[4:8])),
		From: binary.BigEndian.Uint32(b[8:12]),
	}
}

// --- timestamps -----------------------------------------------------

// LegacyTimestamp is the two-word (sec, usec) on-disk form used by
// older archive records.
type LegacyTimestamp struct {
	Sec  uint32
	USec uint32
}

func PutLegacyTimestamp(b []byte, t LegacyTimestamp) {
	binary.BigEndian.PutUint32(b[0:4], t.Sec)
	binary.BigEndian.PutUint32(b[4:8], t.USec)
}

func GetLegacyTimestamp(b []byte) LegacyTimestamp {
	return LegacyTimestamp{
		Sec:  binary.BigEndian.Uint32(b[0:4]),
		USec: binary.BigEndian.Uint32(b[4:8]),
	}
}

// CurrentTimestamp is the three-word on-disk form: a 64-bit seconds
// count split MSB-first across the first two words (after an in-word
// endian swap of the 64-bit quantity), and a big-endian nanoseconds
// count in the third word.
type CurrentTimestamp struct {
	Sec  int64
	NSec uint32
}

func PutCurrentTimestamp(b []byte, t CurrentTimestamp) {
	binary.BigEndian.PutUint64(b[0:8], uint64(t.Sec))
	binary.BigEndian.PutUint32(b[8:12], t.NSec)
}

func GetCurrentTimestamp(b []byte) CurrentTimestamp {
	return CurrentTimestamp{
		Sec:  int64(binary.BigEndian.Uint64(b[0:8])),
		NSec: binary.BigEndian.Uint32(b[8:12]),
	}
}

// ToCurrent transcodes a legacy timestamp to the current representation.
// Bit-exact per spec §4.A: nsec = usec * 1000.
func (t LegacyTimestamp) ToCurrent() CurrentTimestamp {
	return CurrentTimestamp{Sec: int64(t.Sec), NSec: t.USec * 1000}
}

// ToLegacy is the inverse truncation (nsec / 1000 = usec); lossy below
// microsecond resolution, as in the original implementation.
func (t CurrentTimestamp) ToLegacy() LegacyTimestamp {
	return LegacyTimestamp{Sec: uint32(t.Sec), USec: t.NSec / 1000}
}
