// Package avrocache is an optional warm-restart cache for opened
// archives: on close, a Store's indexes are serialized next to the
// archive as an Avro object-container file; on reopen, if the cache is
// newer than the archive's metadata log, it is decoded instead of
// re-scanning the log from scratch.
//
// Grounded on internal/memorystore/avroCheckpoint.go's checkpoint-file
// pattern (goavro OCF writer/reader, one flat record schema, an
// append-only container file).
package avrocache

import (
	"bufio"
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"

	"github.com/pmcore/pmcore/pkg/archive"
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

// entrySchema is deliberately flat: every index kind the Store holds
// is represented with the same field set so one Avro schema serves all
// of them, discriminated by "kind".
const entrySchema = `{
  "type": "record",
  "name": "IndexEntry",
  "fields": [
    {"name": "kind", "type": "string"},
    {"name": "sec", "type": "long"},
    {"name": "nsec", "type": "long"},
    {"name": "a", "type": "long"},
    {"name": "b", "type": "long"},
    {"name": "c", "type": "long"},
    {"name": "flag", "type": "boolean"},
    {"name": "name", "type": "string"},
    {"name": "bytes", "type": "bytes"}
  ]
}`

const (
	kindDesc  = "desc"
	kindIndom = "indom"
	kindLabel = "label"
	kindHelp  = "help"
)

// Path returns the cache file path for an archive metadata log path.
func Path(archivePath string) string {
	return archivePath + ".avrocache"
}

// Fresh reports whether the cache at cachePath is newer than the
// archive's metadata log at archivePath, i.e. safe to load instead of
// re-scanning.
func Fresh(cachePath, archivePath string) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return false
	}
	return cacheInfo.ModTime().After(archiveInfo.ModTime())
}

// Save serializes store's full state to path.
func Save(path string, store *archive.Store) error {
	snap := store.Snapshot()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("avrocache: create %s: %w", path, err)
	}
	defer f.Close()

	codec, err := goavro.NewCodec(entrySchema)
	if err != nil {
		return fmt.Errorf("avrocache: codec: %w", err)
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               f,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("avrocache: OCF writer: %w", err)
	}

	records := make([]map[string]any, 0, len(snap.Descs)+len(snap.Indoms)*4+len(snap.Labels)+len(snap.Help))
	for _, d := range snap.Descs {
		for _, n := range d.Names {
			records = append(records, map[string]any{
				"kind": kindDesc, "sec": int64(0), "nsec": int64(0),
				"a": int64(d.PMID), "b": int64(d.Desc.Type), "c": int64(int32(d.Desc.Indom)),
				"flag": false, "name": n, "bytes": encodeDescTail(d.Desc),
			})
		}
	}
	for _, r := range snap.Indoms {
		for _, e := range r.Entries {
			records = append(records, map[string]any{
				"kind": kindIndom, "sec": r.Stamp.Sec, "nsec": int64(r.Stamp.NSec),
				"a": int64(r.Indom), "b": int64(e.Inst), "c": int64(0),
				"flag": r.IsDelta, "name": e.Name, "bytes": []byte{},
			})
		}
	}
	for _, l := range snap.Labels {
		records = append(records, map[string]any{
			"kind": kindLabel, "sec": l.Stamp.Sec, "nsec": int64(l.Stamp.NSec),
			"a": int64(l.Type), "b": int64(l.ID), "c": int64(0),
			"flag": false, "name": "", "bytes": l.Bytes,
		})
	}
	for _, h := range snap.Help {
		records = append(records, map[string]any{
			"kind": kindHelp, "sec": int64(0), "nsec": int64(0),
			"a": int64(h.Type), "b": int64(h.ID), "c": int64(0),
			"flag": false, "name": "", "bytes": []byte(h.Text),
		})
	}

	if err := writer.Append(records); err != nil {
		return fmt.Errorf("avrocache: append: %w", err)
	}
	return nil
}

// encodeDescTail packs the descriptor fields not already carried by
// a/b/c (Sem, Units) into the bytes column.
func encodeDescTail(d wire.Descriptor) []byte {
	b := make([]byte, 8)
	putUint32(b[0:4], uint32(d.Sem))
	putUint32(b[4:8], d.Units.Pack())
	return b
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Load decodes path back into a Store, skipping the raw record scan.
func Load(path string) (*archive.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("avrocache: OCF reader: %w", err)
	}

	var snap archive.Snapshot
	descs := make(map[pdu.MetricID]*archive.DescSnapshot)
	for reader.Scan() {
		rec, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("avrocache: read record: %w", err)
		}
		m := rec.(map[string]any)
		switch m["kind"].(string) {
		case kindDesc:
			pmid := pdu.MetricID(m["a"].(int64))
			tail := m["bytes"].([]byte)
			d, ok := descs[pmid]
			if !ok {
				sem := int32(0)
				var units wire.Units
				if len(tail) >= 8 {
					sem = int32(getUint32(tail[0:4]))
					units = wire.UnpackUnits(getUint32(tail[4:8]))
				}
				d = &archive.DescSnapshot{
					PMID: pmid,
					Desc: wire.Descriptor{
						PMID:  uint32(pmid),
						Type:  int32(m["b"].(int64)),
						Indom: uint32(int32(m["c"].(int64))),
						Sem:   sem,
						Units: units,
					},
				}
				descs[pmid] = d
			}
			d.Names = append(d.Names, m["name"].(string))
		case kindIndom:
			indom := pdu.InstDomID(m["a"].(int64))
			inst := pdu.InstanceID(m["b"].(int64))
			stamp := wire.CurrentTimestamp{Sec: m["sec"].(int64), NSec: uint32(m["nsec"].(int64))}
			found := false
			for i := range snap.Indoms {
				if snap.Indoms[i].Indom == indom && snap.Indoms[i].Stamp == stamp && snap.Indoms[i].IsDelta == m["flag"].(bool) {
					snap.Indoms[i].Entries = append(snap.Indoms[i].Entries, archive.IndomEntrySnapshot{Inst: inst, Name: m["name"].(string)})
					found = true
					break
				}
			}
			if !found {
				snap.Indoms = append(snap.Indoms, archive.IndomSnapshot{
					Indom: indom, Stamp: stamp, IsDelta: m["flag"].(bool),
					Entries: []archive.IndomEntrySnapshot{{Inst: inst, Name: m["name"].(string)}},
				})
			}
		case kindLabel:
			snap.Labels = append(snap.Labels, archive.LabelSnapshot{
				Type:  int32(m["a"].(int64)),
				ID:    uint32(m["b"].(int64)),
				Stamp: wire.CurrentTimestamp{Sec: m["sec"].(int64), NSec: uint32(m["nsec"].(int64))},
				Bytes: m["bytes"].([]byte),
			})
		case kindHelp:
			snap.Help = append(snap.Help, archive.HelpSnapshot{
				Type: pdu.TextType(m["a"].(int64)),
				ID:   uint32(m["b"].(int64)),
				Text: string(m["bytes"].([]byte)),
			})
		}
	}
	for _, d := range descs {
		snap.Descs = append(snap.Descs, *d)
	}

	if reader.Err() != nil {
		return nil, fmt.Errorf("avrocache: scan: %w", reader.Err())
	}
	return archive.LoadSnapshot(snap), nil
}
