package archive

import (
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

// IndomEntrySnapshot is the exported form of indomEntry, for callers
// outside this package (pkg/archive/avrocache) that need to walk a
// Store's full state without reaching into its private indexes.
type IndomEntrySnapshot struct {
	Inst pdu.InstanceID
	Name string
}

type DescSnapshot struct {
	PMID  pdu.MetricID
	Desc  wire.Descriptor
	Names []string
}

type IndomSnapshot struct {
	Indom   pdu.InstDomID
	Stamp   wire.CurrentTimestamp
	IsDelta bool
	Entries []IndomEntrySnapshot
}

type LabelSnapshot struct {
	Type  int32
	ID    uint32
	Stamp wire.CurrentTimestamp
	Bytes []byte
}

type HelpSnapshot struct {
	Type pdu.TextType
	ID   uint32
	Text string
}

// Snapshot is a flat, serialization-friendly dump of every index a
// Store holds. pkg/archive/avrocache round-trips archives through
// this shape on a warm restart instead of re-scanning the log.
type Snapshot struct {
	Descs  []DescSnapshot
	Indoms []IndomSnapshot
	Labels []LabelSnapshot
	Help   []HelpSnapshot
}

// Snapshot dumps the Store's current state. Delta indom records are
// resolved to full records first so the snapshot never needs the
// original's chain to reconstruct them again.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	for pmid, d := range s.descs {
		snap.Descs = append(snap.Descs, DescSnapshot{PMID: pmid, Desc: d, Names: s.pmidToNames[pmid]})
	}
	for indom, bucket := range s.indoms {
		for i := range bucket {
			_ = s.resolveDelta(bucket, i)
			entries := make([]IndomEntrySnapshot, 0, len(bucket[i].Entries))
			for _, e := range bucket[i].Entries {
				entries = append(entries, IndomEntrySnapshot{Inst: e.Inst, Name: e.Name})
			}
			snap.Indoms = append(snap.Indoms, IndomSnapshot{
				Indom: indom, Stamp: bucket[i].Stamp, IsDelta: bucket[i].IsDelta, Entries: entries,
			})
		}
	}
	for key, bucket := range s.labels {
		for _, rec := range bucket {
			snap.Labels = append(snap.Labels, LabelSnapshot{Type: key.Type, ID: key.ID, Stamp: rec.Stamp, Bytes: rec.Bytes})
		}
	}
	for key, text := range s.help {
		snap.Help = append(snap.Help, HelpSnapshot{Type: key.Type, ID: key.ID, Text: text})
	}
	return snap
}

// LoadSnapshot rebuilds a Store directly from a prior Snapshot,
// bypassing the raw record scan entirely.
func LoadSnapshot(snap Snapshot) *Store {
	s := NewStore()
	for _, d := range snap.Descs {
		s.descs[d.PMID] = d.Desc
		s.pmidToNames[d.PMID] = d.Names
		for _, n := range d.Names {
			s.nameToPMID[n] = d.PMID
		}
	}
	for _, r := range snap.Indoms {
		entries := make([]indomEntry, 0, len(r.Entries))
		for _, e := range r.Entries {
			entries = append(entries, indomEntry{Inst: e.Inst, Name: e.Name})
		}
		rec := &indomRecord{Stamp: r.Stamp, IsDelta: r.IsDelta, Entries: entries}
		s.indoms[r.Indom] = append(s.indoms[r.Indom], rec)
	}
	for indom := range s.indoms {
		bucket := s.indoms[indom]
		sortIndomBucketNewestFirst(bucket)
	}
	for _, l := range snap.Labels {
		key := labelKey{Type: l.Type, ID: l.ID}
		s.labels[key] = append(s.labels[key], &labelRecord{Stamp: l.Stamp, Bytes: l.Bytes})
	}
	for key := range s.labels {
		sortLabelBucketNewestFirst(s.labels[key])
	}
	for _, h := range snap.Help {
		s.help[helpKey{Type: h.Type, ID: h.ID}] = h.Text
	}
	s.loaded = true
	return s
}

func sortIndomBucketNewestFirst(bucket []*indomRecord) {
	for i := 1; i < len(bucket); i++ {
		for j := i; j > 0 && tsAfter(bucket[j].Stamp, bucket[j-1].Stamp); j-- {
			bucket[j], bucket[j-1] = bucket[j-1], bucket[j]
		}
	}
}

func sortLabelBucketNewestFirst(bucket []*labelRecord) {
	for i := 1; i < len(bucket); i++ {
		for j := i; j > 0 && tsAfter(bucket[j].Stamp, bucket[j-1].Stamp); j-- {
			bucket[j], bucket[j-1] = bucket[j-1], bucket[j]
		}
	}
}
