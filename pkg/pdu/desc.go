package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

const descBodySize = 20

// EncodeDesc produces the wire body for a DESC PDU.
func EncodeDesc(d wire.Descriptor) []byte {
	buf := make([]byte, descBodySize)
	binary.BigEndian.PutUint32(buf[0:4], d.PMID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(d.Type))
	binary.BigEndian.PutUint32(buf[8:12], d.Indom)
	binary.BigEndian.PutUint32(buf[12:16], uint32(d.Sem))
	binary.BigEndian.PutUint32(buf[16:20], d.Units.Pack())
	return buf
}

// DecodeDesc parses a DESC PDU body.
func DecodeDesc(body []byte) (wire.Descriptor, error) {
	if len(body) < descBodySize {
		return wire.Descriptor{}, fmt.Errorf("desc body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	return wire.Descriptor{
		PMID:  binary.BigEndian.Uint32(body[0:4]),
		Type:  int32(binary.BigEndian.Uint32(body[4:8])),
		Indom: binary.BigEndian.Uint32(body[8:12]),
		Sem:   int32(binary.BigEndian.Uint32(body[12:16])),
		Units: wire.UnpackUnits(binary.BigEndian.Uint32(body[16:20])),
	}, nil
}

// DescList is the DESC_IDS response payload: one descriptor per
// requested PMID, in request order.
type DescList struct {
	Descs []wire.Descriptor
}

func EncodeDescList(l DescList) []byte {
	buf := make([]byte, 4+descBodySize*len(l.Descs))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(l.Descs)))
	off := 4
	for _, d := range l.Descs {
		copy(buf[off:off+descBodySize], EncodeDesc(d))
		off += descBodySize
	}
	return buf
}

func DecodeDescList(body []byte) (DescList, error) {
	if len(body) < 4 {
		return DescList{}, fmt.Errorf("desc_ids body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	n := binary.BigEndian.Uint32(body[0:4])
	need := 4 + descBodySize*int(n)
	if need > len(body) {
		return DescList{}, fmt.Errorf("desc_ids declares %d descs but body is %d bytes: %w", n, len(body), pmerr.ErrProtocol)
	}
	l := DescList{Descs: make([]wire.Descriptor, n)}
	off := 4
	for i := uint32(0); i < n; i++ {
		d, err := DecodeDesc(body[off : off+descBodySize])
		if err != nil {
			return DescList{}, err
		}
		l.Descs[i] = d
		off += descBodySize
	}
	return l, nil
}
