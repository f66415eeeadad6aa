// Command pmexport renders an archive's indexed metadata (descriptors
// and their bound PMNS names) as InfluxDB line protocol, so a metadata
// catalog can be loaded into any line-protocol-speaking time-series
// store for cross-referencing against sample data held elsewhere.
// Supplements the spec with an export path grounded in the teacher's
// internal/memorystore/lineprotocol.go use of
// influxdata/line-protocol/v2.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/pmcore/pmcore/pkg/archive"
	"github.com/pmcore/pmcore/pkg/log"
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

func main() {
	archivePath := flag.String("a", "", "archive base name")
	out := flag.String("o", "", "output file (default stdout)")
	flag.Parse()

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "usage: pmexport -a <archive> [-o <file>]")
		os.Exit(2)
	}

	dir, name := splitArchivePath(*archivePath)
	backend := archive.NewFSBackend(archive.FSArchiveConfig{Path: dir})
	store, err := archive.Load(backend, name)
	if err != nil {
		log.Fatal(err)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}

	if err := exportDescriptors(w, store, *archivePath); err != nil {
		log.Fatal(err)
	}
}

// exportDescriptors writes one line-protocol point per descriptor:
// measurement "pmcore_descriptor", tagged by archive and metric name,
// with the descriptor's type/indom/sem/units as fields.
func exportDescriptors(w *os.File, store *archive.Store, archiveName string) error {
	now := time.Now()
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)

	var encodeErr error
	store.Each(func(pmid pdu.MetricID, d wire.Descriptor, names []string) {
		if encodeErr != nil {
			return
		}
		if len(names) == 0 {
			names = []string{fmt.Sprintf("pmid.%d", pmid)}
		}
		for _, name := range names {
			enc.StartLine("pmcore_descriptor")
			enc.AddTag("archive", archiveName)
			enc.AddTag("name", name)
			enc.AddField("pmid", lineprotocol.MustNewValue(int64(pmid)))
			enc.AddField("type", lineprotocol.MustNewValue(int64(d.Type)))
			enc.AddField("indom", lineprotocol.MustNewValue(int64(d.Indom)))
			enc.AddField("sem", lineprotocol.MustNewValue(int64(d.Sem)))
			enc.AddField("units", lineprotocol.MustNewValue(int64(d.Units.Pack())))
			enc.EndLine(now)
			if err := enc.Err(); err != nil {
				encodeErr = err
				return
			}
		}
	})
	if encodeErr != nil {
		return encodeErr
	}

	_, err := w.Write(enc.Bytes())
	return err
}

func splitArchivePath(base string) (dir, name string) {
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			return base[:i], base[i+1:]
		}
	}
	return ".", base
}
