// Package diag holds the §4.B diagnostics: per-type send/receive
// counters and a ring buffer of the last NUMTRACE frames, guarded by a
// single mutex (the "pdu" lock in spec §5's mutex inventory). Counters
// and the trace ring are also mirrored onto a Prometheus registry and,
// if configured, fanned out to a NATS subject — both are optional
// diagnostics consumers, never on the decode path itself.
package diag

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
)

// NumTrace is the size of the frame trace ring (matches the original
// implementation's NUMTRACE).
const NumTrace = 8

// TraceEntry records one successfully sent or received frame.
type TraceEntry struct {
	FD   int
	Xmit bool
	Type int32
	Len  uint32
}

type registry struct {
	mu        sync.Mutex
	inCounts  map[int32]uint64
	outCounts map[int32]uint64
	trace     [NumTrace]TraceEntry
	next      uint32

	natsConn    *nats.Conn
	natsSubject string
}

var global = &registry{
	inCounts:  make(map[int32]uint64),
	outCounts: make(map[int32]uint64),
}

// SetNATSPublisher wires an optional fan-out of every trace insertion to
// a NATS subject, grounded on pkg/nats/client.go's singleton-connection
// pattern. Passing a nil conn disables fan-out.
func SetNATSPublisher(conn *nats.Conn, subject string) {
	global.mu.Lock()
	global.natsConn = conn
	global.natsSubject = subject
	global.mu.Unlock()
}

// RecordRecv increments the receive counter for typ and inserts a trace
// entry.
func RecordRecv(fd int, typ int32, length uint32) { record(fd, false, typ, length) }

// RecordSend increments the send counter for typ and inserts a trace
// entry.
func RecordSend(fd int, typ int32, length uint32) { record(fd, true, typ, length) }

func record(fd int, xmit bool, typ int32, length uint32) {
	global.mu.Lock()
	if xmit {
		global.outCounts[typ]++
		sendCounter.WithLabelValues(typeLabel(typ)).Inc()
	} else {
		global.inCounts[typ]++
		recvCounter.WithLabelValues(typeLabel(typ)).Inc()
	}
	p := global.next % NumTrace
	global.next++
	entry := TraceEntry{FD: fd, Xmit: xmit, Type: typ, Len: length}
	global.trace[p] = entry
	conn, subject := global.natsConn, global.natsSubject
	global.mu.Unlock()

	if conn != nil && subject != "" {
		if b, err := json.Marshal(entry); err == nil {
			conn.Publish(subject, b)
		}
	}
}

// Trace returns the most recent frames, oldest first.
func Trace() []TraceEntry {
	global.mu.Lock()
	defer global.mu.Unlock()
	n := NumTrace
	start := global.next
	if global.next < NumTrace {
		n = int(global.next)
		start = 0
	}
	out := make([]TraceEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, global.trace[(int(start)+i)%NumTrace])
	}
	return out
}

// Counters returns a snapshot of the per-type in/out counters.
func Counters() (in, out map[int32]uint64) {
	global.mu.Lock()
	defer global.mu.Unlock()
	in = make(map[int32]uint64, len(global.inCounts))
	out = make(map[int32]uint64, len(global.outCounts))
	for k, v := range global.inCounts {
		in[k] = v
	}
	for k, v := range global.outCounts {
		out[k] = v
	}
	return in, out
}

var (
	sendCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pmcore",
		Subsystem: "pdu",
		Name:      "frames_sent_total",
		Help:      "Total PDU frames sent, by type.",
	}, []string{"type"})
	recvCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pmcore",
		Subsystem: "pdu",
		Name:      "frames_received_total",
		Help:      "Total PDU frames received, by type.",
	}, []string{"type"})
)

// Registerer lets callers attach the PDU counters to their own
// Prometheus registry (e.g. internal/reqport's diagnostics endpoint).
func Registerer() []prometheus.Collector {
	return []prometheus.Collector{sendCounter, recvCounter}
}

func typeLabel(typ int32) string {
	if name, ok := TypeNames[typ]; ok {
		return name
	}
	return "unknown"
}

// TypeNames maps a PDU type constant to its diagnostic label; populated
// by pkg/pdu's init so diag stays free of a dependency on the codec
// package (avoids an import cycle).
var TypeNames = map[int32]string{}
