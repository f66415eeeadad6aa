package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// IDList is the shared payload shape for PMNS_IDS and DESC_IDS: a flat
// list of metric identifiers, used both as a request ("describe these
// PMIDs") and as an acknowledgement ("these PMIDs are now known").
type IDList struct {
	IDs []MetricID
}

// EncodeIDList produces the wire body for a PMNS_IDS or DESC_IDS PDU:
// a count followed by that many big-endian PMIDs.
func EncodeIDList(l IDList) []byte {
	buf := make([]byte, 4+4*len(l.IDs))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(l.IDs)))
	off := 4
	for _, id := range l.IDs {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(id))
		off += 4
	}
	return buf
}

// DecodeIDList parses a PMNS_IDS or DESC_IDS PDU body.
func DecodeIDList(body []byte) (IDList, error) {
	if len(body) < 4 {
		return IDList{}, fmt.Errorf("idlist body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	n := binary.BigEndian.Uint32(body[0:4])
	need := 4 + 4*int(n)
	if need > len(body) {
		return IDList{}, fmt.Errorf("idlist declares %d ids but body is %d bytes: %w", n, len(body), pmerr.ErrProtocol)
	}
	l := IDList{IDs: make([]MetricID, n)}
	off := 4
	for i := uint32(0); i < n; i++ {
		l.IDs[i] = MetricID(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
	}
	return l, nil
}
