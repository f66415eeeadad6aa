package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// ProfileState is the per-context instance filter state for one indom.
type ProfileState int32

const (
	Include ProfileState = 1
	Exclude ProfileState = 0
)

// ProfileEntry restricts one instance domain's fetched instances.
// Instances preserve caller order (spec S1); they are NOT required to
// be sorted the way an archive instance list is.
type ProfileEntry struct {
	Indom     InstDomID
	State     ProfileState
	Instances []InstanceID
}

// Profile is the PROFILE PDU payload: a per-context filter.
type Profile struct {
	CtxSlot     int32
	GlobalState ProfileState
	Entries     []ProfileEntry
}

const profileHeaderSize = 16
const profileEntryHeaderSize = 16

// EncodeProfile produces the wire body for a PROFILE PDU.
func EncodeProfile(p Profile) []byte {
	size := profileHeaderSize
	for _, e := range p.Entries {
		size += profileEntryHeaderSize + 4*len(e.Instances)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.CtxSlot))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.GlobalState))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(p.Entries)))
	// buf[12:16] reserved/pad, left zero

	off := profileHeaderSize
	for _, e := range p.Entries {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(e.Indom))
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(e.State))
		binary.BigEndian.PutUint32(buf[off+8:off+12], uint32(len(e.Instances)))
		off += profileEntryHeaderSize
		for _, inst := range e.Instances {
			binary.BigEndian.PutUint32(buf[off:off+4], uint32(inst))
			off += 4
		}
	}
	return buf
}

// DecodeProfile validates and parses a PROFILE PDU body. It never reads
// past the declared body length, and rejects a declared instance count
// that could not fit in the remaining bytes.
func DecodeProfile(body []byte) (Profile, error) {
	if len(body) < profileHeaderSize {
		return Profile{}, fmt.Errorf("profile body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	p := Profile{
		CtxSlot:     int32(binary.BigEndian.Uint32(body[0:4])),
		GlobalState: ProfileState(binary.BigEndian.Uint32(body[4:8])),
	}
	numEntries := binary.BigEndian.Uint32(body[8:12])

	off := profileHeaderSize
	for i := uint32(0); i < numEntries; i++ {
		if off+profileEntryHeaderSize > len(body) {
			return Profile{}, fmt.Errorf("profile entry %d header truncated: %w", i, pmerr.ErrProtocol)
		}
		indom := InstDomID(binary.BigEndian.Uint32(body[off : off+4]))
		state := ProfileState(binary.BigEndian.Uint32(body[off+4 : off+8]))
		numInst := binary.BigEndian.Uint32(body[off+8 : off+12])
		off += profileEntryHeaderSize

		remaining := len(body) - off
		if numInst > uint32(remaining)/4 {
			return Profile{}, fmt.Errorf("profile entry %d instance count %d exceeds remaining body: %w", i, numInst, pmerr.ErrProtocol)
		}
		insts := make([]InstanceID, numInst)
		for j := uint32(0); j < numInst; j++ {
			insts[j] = InstanceID(binary.BigEndian.Uint32(body[off : off+4]))
			off += 4
		}
		p.Entries = append(p.Entries, ProfileEntry{Indom: indom, State: state, Instances: insts})
	}
	return p, nil
}
