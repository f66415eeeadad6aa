package archive

import (
	"fmt"
	"sort"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// Store is the in-memory index built from one archive's metadata log.
// Load is idempotent: calling it twice on the same Store is a no-op
// after the first call, matching the original's "open metadata log
// exactly once per context" behaviour.
type Store struct {
	loaded bool

	// index 1: descriptor + PMNS names for a metric.
	descs map[pdu.MetricID]wire.Descriptor
	// index 2: PMNS bidirectional lookup.
	nameToPMID  map[string]pdu.MetricID
	pmidToNames map[pdu.MetricID][]string
	// index 3: instance domain history, newest-first per domain.
	indoms map[pdu.InstDomID][]*indomRecord
	// index 4: label history, newest-first per (type,id).
	labels map[labelKey][]*labelRecord
	// index 5: help text, keyed by (kind bits, id).
	help map[helpKey]string
}

func NewStore() *Store {
	return &Store{
		descs:       make(map[pdu.MetricID]wire.Descriptor),
		nameToPMID:  make(map[string]pdu.MetricID),
		pmidToNames: make(map[pdu.MetricID][]string),
		indoms:      make(map[pdu.InstDomID][]*indomRecord),
		labels:      make(map[labelKey][]*labelRecord),
		help:        make(map[helpKey]string),
	}
}

// Load parses the raw metadata log and populates every index. Calling
// Load a second time on an already-loaded Store is a no-op.
func (s *Store) Load(data []byte) error {
	if s.loaded {
		return nil
	}
	records, err := scanRecords(data)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := s.applyRecord(r); err != nil {
			return err
		}
	}
	s.dedupLabels()
	s.loaded = true
	return nil
}

func (s *Store) applyRecord(r rawRecord) error {
	switch r.Type {
	case RecDesc:
		return s.applyDesc(r.Body)
	case RecIndom, RecIndomV2:
		rec, indom, err := decodeIndomRecord(r.Body, false, r.Type == RecIndomV2)
		if err != nil {
			return err
		}
		s.insertIndom(indom, rec)
	case RecIndomDelta:
		rec, indom, err := decodeIndomRecord(r.Body, true, false)
		if err != nil {
			return err
		}
		s.insertIndom(indom, rec)
	case RecLabel, RecLabelV2:
		rec, key, err := decodeLabelRecord(r.Body, r.Type == RecLabelV2)
		if err != nil {
			return err
		}
		s.labels[key] = append([]*labelRecord{&rec}, s.labels[key]...)
	case RecText:
		key, text, err := decodeTextRecord(r.Body)
		if err != nil {
			return err
		}
		s.help[key] = text
	default:
		return fmt.Errorf("unknown archive record type %d: %w", r.Type, pmerr.ErrLogRec)
	}
	return nil
}

// applyDesc decodes a DESC record (a pmDesc followed by its bound PMNS
// names) and rejects a rebinding that disagrees with an already-loaded
// descriptor for the same PMID, per ErrLogChange* (spec §4.E).
func (s *Store) applyDesc(body []byte) error {
	if len(body) < descBodySize+4 {
		return fmt.Errorf("desc record too short: %w", pmerr.ErrLogRec)
	}
	d, err := DecodeDesc(body[:descBodySize])
	if err != nil {
		return err
	}
	names, err := decodeNameList(body[descBodySize:])
	if err != nil {
		return err
	}

	pmid := pdu.MetricID(d.PMID)
	if existing, ok := s.descs[pmid]; ok {
		if existing.Type != d.Type {
			return fmt.Errorf("pmid %v: %w", pmid, pmerr.ErrLogChangeType)
		}
		if existing.Sem != d.Sem {
			return fmt.Errorf("pmid %v: %w", pmid, pmerr.ErrLogChangeSem)
		}
		if existing.Indom != d.Indom {
			return fmt.Errorf("pmid %v: %w", pmid, pmerr.ErrLogChangeIndom)
		}
		if !existing.Units.Equal(d.Units) {
			return fmt.Errorf("pmid %v: %w", pmid, pmerr.ErrLogChangeUnits)
		}
	}
	s.descs[pmid] = d
	for _, n := range names {
		s.nameToPMID[n] = pmid
	}
	s.pmidToNames[pmid] = append(s.pmidToNames[pmid], names...)
	return nil
}

func decodeNameList(body []byte) ([]string, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("desc record name count truncated: %w", pmerr.ErrLogRec)
	}
	n := int(bigEndianUint32(body))
	off := 4
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(body) {
			return nil, fmt.Errorf("desc record name %d truncated: %w", i, pmerr.ErrLogRec)
		}
		nameLen := int(bigEndianUint32(body[off:]))
		off += 4
		if off+nameLen > len(body) {
			return nil, fmt.Errorf("desc record name %d body truncated: %w", i, pmerr.ErrLogRec)
		}
		names = append(names, string(body[off:off+nameLen]))
		off += nameLen
	}
	return names, nil
}

// insertIndom applies the duplicate-suppression rule: a new full
// record whose (inst,name) set is identical to an already-held full
// record for the same domain is not stored again — the existing
// record is promoted to the head of the history with the new
// timestamp instead. Delta records are never compared this way.
func (s *Store) insertIndom(indom pdu.InstDomID, rec indomRecord) {
	bucket := s.indoms[indom]
	if !rec.IsDelta {
		key := sortedEntryKey(rec.Entries)
		for i, existing := range bucket {
			if existing.IsDelta {
				continue
			}
			if sortedEntryKey(existing.Entries) == key {
				existing.Stamp = rec.Stamp
				bucket = append(bucket[:i], bucket[i+1:]...)
				bucket = append([]*indomRecord{existing}, bucket...)
				s.indoms[indom] = bucket
				return
			}
		}
	}
	r := rec
	s.indoms[indom] = append([]*indomRecord{&r}, bucket...)
}

func sortedEntryKey(entries []indomEntry) string {
	cp := append([]indomEntry(nil), entries...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Inst < cp[j].Inst })
	var b []byte
	for _, e := range cp {
		b = append(b, []byte(fmt.Sprintf("%d:%s;", e.Inst, e.Name))...)
	}
	return string(b)
}

// dedupLabels walks each label chain newest-to-oldest and drops a
// newer entry that is bit-identical to the one immediately preceding
// it in time, since it carries no new information.
func (s *Store) dedupLabels() {
	for key, bucket := range s.labels {
		out := bucket[:0:0]
		for i, rec := range bucket {
			if i+1 < len(bucket) && bytesEqual(rec.Bytes, bucket[i+1].Bytes) {
				continue
			}
			out = append(out, rec)
		}
		s.labels[key] = out
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bigEndianUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// LookupDesc returns the descriptor bound to pmid.
func (s *Store) LookupDesc(pmid pdu.MetricID) (wire.Descriptor, bool) {
	d, ok := s.descs[pmid]
	return d, ok
}

// LookupPMID resolves a PMNS name to its metric id.
func (s *Store) LookupPMID(name string) (pdu.MetricID, bool) {
	id, ok := s.nameToPMID[name]
	return id, ok
}

// Names returns every PMNS name bound to pmid.
func (s *Store) Names(pmid pdu.MetricID) []string {
	return s.pmidToNames[pmid]
}

// Each visits every descriptor with its bound PMNS names, satisfying
// pkg/archive/catalog.Descriptors for cross-archive indexing.
func (s *Store) Each(visit func(pmid pdu.MetricID, d wire.Descriptor, names []string)) {
	for pmid, d := range s.descs {
		visit(pmid, d, s.pmidToNames[pmid])
	}
}

// HelpText returns the help text registered for id under the given
// TextType bits (spec §4.A TEXT_REQ/TEXT).
func (s *Store) HelpText(t pdu.TextType, id uint32) (string, bool) {
	text, ok := s.help[helpKey{Type: t, ID: id}]
	return text, ok
}

// Label returns the most recent label set for (kind,id) at or before
// ts, after the chain's de-duplication pass.
func (s *Store) Label(kind int32, id uint32, ts wire.CurrentTimestamp) ([]byte, bool) {
	bucket := s.labels[labelKey{Type: kind, ID: id}]
	for _, rec := range bucket {
		if !tsAfter(rec.Stamp, ts) {
			return rec.Bytes, true
		}
	}
	return nil, false
}

// Instances returns the fully reconstructed instance set for indom at
// or before ts. A delta record on the lookup path is resolved against
// its nearest older full snapshot and the result is cached in place,
// so repeated lookups through the same delta pay the reconstruction
// cost exactly once.
func (s *Store) Instances(indom pdu.InstDomID, ts wire.CurrentTimestamp) ([]pdu.Instance, error) {
	bucket := s.indoms[indom]
	if len(bucket) == 0 {
		return nil, fmt.Errorf("indom %v: %w", indom, pmerr.ErrIndom)
	}
	idx := -1
	for i, rec := range bucket {
		if !tsAfter(rec.Stamp, ts) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("indom %v has no record at or before %v: %w", indom, ts, pmerr.ErrIndom)
	}
	if err := s.resolveDelta(bucket, idx); err != nil {
		return nil, err
	}
	return entriesToInstances(bucket[idx].Entries), nil
}

// resolveDelta rewrites bucket[idx] in place into a full record if it
// is currently a delta, walking forward through older deltas to the
// nearest full snapshot and replaying them in chronological order.
func (s *Store) resolveDelta(bucket []*indomRecord, idx int) error {
	if !bucket[idx].IsDelta {
		return nil
	}
	snapshotIdx := -1
	for i := idx + 1; i < len(bucket); i++ {
		if !bucket[i].IsDelta {
			snapshotIdx = i
			break
		}
	}
	if snapshotIdx == -1 {
		return fmt.Errorf("delta indom record has no full snapshot: %w", pmerr.ErrLogRec)
	}

	merged := make(map[pdu.InstanceID]string, len(bucket[snapshotIdx].Entries))
	for _, e := range bucket[snapshotIdx].Entries {
		merged[e.Inst] = e.Name
	}
	// Every record strictly between snapshotIdx and idx is itself a
	// delta (snapshotIdx is the nearest full record); replay them
	// oldest-first so a later rename/remove wins.
	for i := snapshotIdx - 1; i >= idx; i-- {
		for _, e := range bucket[i].Entries {
			if e.Name == "" {
				delete(merged, e.Inst)
				continue
			}
			merged[e.Inst] = e.Name
		}
	}

	full := make([]indomEntry, 0, len(merged))
	for inst, name := range merged {
		full = append(full, indomEntry{Inst: inst, Name: name})
	}
	sort.Slice(full, func(i, j int) bool { return full[i].Inst < full[j].Inst })
	bucket[idx].IsDelta = false
	bucket[idx].Entries = full
	return nil
}

func entriesToInstances(entries []indomEntry) []pdu.Instance {
	out := make([]pdu.Instance, 0, len(entries))
	for _, e := range entries {
		out = append(out, pdu.Instance{Inst: e.Inst, Name: e.Name})
	}
	return out
}

// tsAfter reports whether t is strictly later than o — local helper
// since wire.CurrentTimestamp carries no comparison methods of its own.
func tsAfter(t, o wire.CurrentTimestamp) bool {
	if t.Sec != o.Sec {
		return t.Sec > o.Sec
	}
	return t.NSec > o.NSec
}
