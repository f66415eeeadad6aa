// Package pdu implements components B and C: typed, length-prefixed
// PDU framing over a stream socket, and the codecs for each typed
// frame body. Grounded on original_source/src/libpcp/src/pdu.c for the
// framing/diagnostics semantics and p_*.c for each typed codec.
package pdu

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pmcore/pmcore/internal/runtimeenv"
	"github.com/pmcore/pmcore/pkg/pdu/diag"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// lastFD approximates the "thread-local last fd" of spec §4.B as a
// process-wide value: Go has no first-class goroutine-local storage,
// and introducing one via runtime trickery would be far more surprising
// to a Go reader than a documented approximation.
var lastFD int64

func LastFD() int { return int(atomic.LoadInt64(&lastFD)) }

func connFD(conn net.Conn) int {
	type fder interface{ Fd() uintptr }
	if f, ok := conn.(fder); ok {
		return int(f.Fd())
	}
	return -1
}

// Xmit sends one PDU frame. The header is converted to network order;
// the body is written as-is (callers are expected to have already
// produced it in wire order via the typed codecs). A short write that
// never reaches the declared length is reported as pmerr.ErrIPC.
func Xmit(conn net.Conn, typ Type, from uint32, body []byte) error {
	runtimeenv.EnsureSIGPIPEIgnored()

	total := wire.HeaderSize + len(body)
	buf := make([]byte, total)
	wire.PutHeader(buf[:wire.HeaderSize], wire.Header{
		Len:  uint32(total),
		Type: int32(typ),
		From: from,
	})
	copy(buf[wire.HeaderSize:], body)

	n, err := writeFull(conn, buf)
	atomic.StoreInt64(&lastFD, int64(connFD(conn)))
	if err != nil {
		return fmt.Errorf("xmit %s: %w: %v", typ, pmerr.ErrIPC, err)
	}
	if n != total {
		return fmt.Errorf("xmit %s: short write %d/%d: %w", typ, n, total, pmerr.ErrIPC)
	}
	diag.RecordSend(connFD(conn), int32(typ), uint32(total))
	return nil
}

func writeFull(conn net.Conn, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := conn.Write(buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// SizeLimitMode controls whether Get rejects oversized inbound frames
// (spec §4.B "LIMIT_SIZE mode").
type SizeLimitMode int

const (
	// LimitSizeOn enforces Limit against the declared frame length
	// before any body bytes are read.
	LimitSizeOn SizeLimitMode = iota
	LimitSizeOff
)

// Options configures a single Get call.
type Options struct {
	Mode    SizeLimitMode
	Limit   int // 0 => DefaultSizeLimit
	Timeout time.Duration // 0 => no deadline (NEVER)
}

// Get reads one PDU frame: the 12-byte header, then len-12 body bytes
// into a pooled, pinned buffer. The deadline (if any) is computed once
// at entry, not re-derived per short-read retry. A clean close after
// zero bytes returns (nil, 0, nil); a deadline elapsing returns
// pmerr.ErrTimeout; a negative decoded type is pmerr.ErrIPC.
func Get(conn net.Conn, opts Options) (*Buf, wire.Header, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultSizeLimit
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, wire.Header{}, fmt.Errorf("set deadline: %w", err)
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	hdrBuf := make([]byte, wire.HeaderSize)
	n, err := readFull(conn, hdrBuf, deadline)
	if err != nil {
		return nil, wire.Header{}, err
	}
	if n == 0 {
		return nil, wire.Header{}, nil // clean close
	}
	if n < wire.HeaderSize {
		return nil, wire.Header{}, fmt.Errorf("short header %d/%d: %w", n, wire.HeaderSize, pmerr.ErrIPC)
	}

	hdr := wire.GetHeader(hdrBuf)
	if hdr.Type < 0 {
		return nil, hdr, fmt.Errorf("negative pdu type %d: %w", hdr.Type, pmerr.ErrIPC)
	}
	if hdr.Len < wire.HeaderSize {
		return nil, hdr, fmt.Errorf("declared len %d shorter than header: %w", hdr.Len, pmerr.ErrIPC)
	}

	bodyLen := int(hdr.Len) - wire.HeaderSize
	if opts.Mode == LimitSizeOn && bodyLen > limit-wire.HeaderSize {
		return nil, hdr, fmt.Errorf("frame len %d exceeds limit %d: %w", hdr.Len, limit, pmerr.ErrTooBig)
	}

	buf := getBuf(bodyLen)
	buf.Data = buf.Data[:bodyLen]
	if bodyLen > 0 {
		n, err := readFull(conn, buf.Data, deadline)
		if err != nil {
			buf.Unpin()
			return nil, hdr, err
		}
		if n != bodyLen {
			buf.Unpin()
			return nil, hdr, fmt.Errorf("short body %d/%d: %w", n, bodyLen, pmerr.ErrIPC)
		}
	}

	atomic.StoreInt64(&lastFD, int64(connFD(conn)))
	diag.RecordRecv(connFD(conn), int32(hdr.Type), hdr.Len)
	return buf, hdr, nil
}

func readFull(conn net.Conn, buf []byte, deadline time.Time) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				if read == 0 {
					return 0, nil
				}
				return read, fmt.Errorf("eof mid-frame at %d/%d: %w", read, len(buf), pmerr.ErrIPC)
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return read, fmt.Errorf("%w: %v", pmerr.ErrTimeout, err)
			}
			return read, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return read, fmt.Errorf("%w: deadline exceeded mid-frame", pmerr.ErrTimeout)
		}
	}
	return read, nil
}
