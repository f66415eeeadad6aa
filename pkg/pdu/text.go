package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// TextType flags what kind of identifier a TEXT_REQ/TEXT PDU carries
// and which of the two help-text variants is wanted.
type TextType uint32

const (
	TextPMID    TextType = 1 << 0
	TextIndom   TextType = 1 << 1
	TextOneLine TextType = 1 << 2
	TextFull    TextType = 1 << 3
)

// TextReq is the TEXT_REQ PDU payload: a request for help text about
// either a metric or an instance domain.
type TextReq struct {
	ID   uint32
	Type TextType
}

func EncodeTextReq(r TextReq) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], r.ID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.Type))
	return buf
}

func DecodeTextReq(body []byte) (TextReq, error) {
	if len(body) < 8 {
		return TextReq{}, fmt.Errorf("text_req body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	return TextReq{
		ID:   binary.BigEndian.Uint32(body[0:4]),
		Type: TextType(binary.BigEndian.Uint32(body[4:8])),
	}, nil
}

// TextResult is the TEXT PDU payload: the help text itself.
type TextResult struct {
	ID   uint32
	Type TextType
	Text string
}

func EncodeText(r TextResult) []byte {
	buf := make([]byte, 12+padLen(len(r.Text)))
	binary.BigEndian.PutUint32(buf[0:4], r.ID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.Type))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.Text)))
	copy(buf[12:12+len(r.Text)], r.Text)
	return buf
}

func DecodeText(body []byte) (TextResult, error) {
	if len(body) < 12 {
		return TextResult{}, fmt.Errorf("text body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	r := TextResult{
		ID:   binary.BigEndian.Uint32(body[0:4]),
		Type: TextType(binary.BigEndian.Uint32(body[4:8])),
	}
	textLen := binary.BigEndian.Uint32(body[8:12])
	need := 12 + padLen(int(textLen))
	if need > len(body) {
		return TextResult{}, fmt.Errorf("text body truncated: %w", pmerr.ErrProtocol)
	}
	r.Text = string(body[12 : 12+textLen])
	return r, nil
}
