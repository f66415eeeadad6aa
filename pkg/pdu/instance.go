package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// InstanceReq is the INSTANCE_REQ PDU payload: a lookup of one instance
// domain by instance id, by name, or (when both are null/empty) every
// instance in the domain.
type InstanceReq struct {
	Indom InstDomID
	Inst  InstanceID // NullInstance => lookup by Name, or "all" if Name is also empty
	Name  string
}

func padLen(n int) int { return (n + 3) &^ 3 }

// EncodeInstanceReq produces the wire body for an INSTANCE_REQ PDU.
func EncodeInstanceReq(r InstanceReq) []byte {
	nameLen := len(r.Name)
	buf := make([]byte, 12+padLen(nameLen))
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Indom))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.Inst))
	binary.BigEndian.PutUint32(buf[8:12], uint32(nameLen))
	copy(buf[12:12+nameLen], r.Name)
	return buf
}

// DecodeInstanceReq parses an INSTANCE_REQ PDU body.
func DecodeInstanceReq(body []byte) (InstanceReq, error) {
	if len(body) < 12 {
		return InstanceReq{}, fmt.Errorf("instance_req body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	r := InstanceReq{
		Indom: InstDomID(binary.BigEndian.Uint32(body[0:4])),
		Inst:  InstanceID(binary.BigEndian.Uint32(body[4:8])),
	}
	nameLen := binary.BigEndian.Uint32(body[8:12])
	need := 12 + padLen(int(nameLen))
	if need > len(body) {
		return InstanceReq{}, fmt.Errorf("instance_req name truncated: %w", pmerr.ErrProtocol)
	}
	r.Name = string(body[12 : 12+nameLen])
	return r, nil
}

// Instance is one named instance within an instance domain.
type Instance struct {
	Inst InstanceID
	Name string
}

// InstanceResult is the INSTANCE PDU payload. Per spec S2, an instance
// domain with zero members, or a null/empty instance/name pair, is
// flattened to an empty Instances slice rather than encoding a
// placeholder entry — there is no concept of "one null instance" on
// the wire, only "zero instances".
type InstanceResult struct {
	Indom     InstDomID
	Instances []Instance
}

// EncodeInstance produces the wire body for an INSTANCE PDU.
func EncodeInstance(r InstanceResult) []byte {
	size := 8
	for _, inst := range r.Instances {
		if inst.Inst == NullInstance && inst.Name == "" {
			continue // flattened away, never encoded
		}
		size += 8 + padLen(len(inst.Name))
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Indom))

	off := 8
	n := uint32(0)
	for _, inst := range r.Instances {
		if inst.Inst == NullInstance && inst.Name == "" {
			continue
		}
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(inst.Inst))
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(len(inst.Name)))
		off += 8
		copy(buf[off:off+len(inst.Name)], inst.Name)
		off += padLen(len(inst.Name))
		n++
	}
	binary.BigEndian.PutUint32(buf[4:8], n)
	return buf
}

// DecodeInstance parses an INSTANCE PDU body. A numinst of zero yields
// an empty (not nil, not "one null element") Instances slice.
func DecodeInstance(body []byte) (InstanceResult, error) {
	if len(body) < 8 {
		return InstanceResult{}, fmt.Errorf("instance body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	r := InstanceResult{Indom: InstDomID(binary.BigEndian.Uint32(body[0:4]))}
	numInst := binary.BigEndian.Uint32(body[4:8])
	r.Instances = make([]Instance, 0, numInst)

	off := 8
	for i := uint32(0); i < numInst; i++ {
		if off+8 > len(body) {
			return InstanceResult{}, fmt.Errorf("instance %d header truncated: %w", i, pmerr.ErrProtocol)
		}
		inst := InstanceID(binary.BigEndian.Uint32(body[off : off+4]))
		nameLen := binary.BigEndian.Uint32(body[off+4 : off+8])
		off += 8
		need := off + padLen(int(nameLen))
		if need > len(body) {
			return InstanceResult{}, fmt.Errorf("instance %d name truncated: %w", i, pmerr.ErrProtocol)
		}
		name := string(body[off : off+int(nameLen)])
		off += padLen(int(nameLen))
		r.Instances = append(r.Instances, Instance{Inst: inst, Name: name})
	}
	return r, nil
}
