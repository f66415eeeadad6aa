package pdu

import "github.com/pmcore/pmcore/pkg/pdu/diag"

// Type is the PDU type tag carried in every frame header.
type Type int32

const (
	TypeError Type = iota + 1
	TypeResult
	TypeProfile
	TypeFetch
	TypeDesc
	TypeDescIDs
	TypeInstanceReq
	TypeInstance
	TypeTextReq
	TypeText
	TypePMNSIDs
	TypeUserAuth
	TypeAuthAttr
)

var typeNames = map[Type]string{
	TypeError:       "ERROR",
	TypeResult:      "RESULT",
	TypeProfile:     "PROFILE",
	TypeFetch:       "FETCH",
	TypeDesc:        "DESC",
	TypeDescIDs:     "DESC_IDS",
	TypeInstanceReq: "INSTANCE_REQ",
	TypeInstance:    "INSTANCE",
	TypeTextReq:     "TEXT_REQ",
	TypeText:        "TEXT",
	TypePMNSIDs:     "PMNS_IDS",
	TypeUserAuth:    "USER_AUTH",
	TypeAuthAttr:    "AUTH_ATTR",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

func init() {
	for t, n := range typeNames {
		diag.TypeNames[int32(t)] = n
	}
}

// LimitAuthPDU bounds a USER_AUTH/AUTH_ATTR opaque payload (spec §4.C).
const LimitAuthPDU = 2048

// DefaultSizeLimit is the LIMIT_SIZE ceiling applied to inbound frames
// unless a caller raises it explicitly (spec §4.B).
const DefaultSizeLimit = 64 * 1024
