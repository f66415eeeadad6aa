// Command pmdump prints the metadata indexed in one or more archives
// (descriptors, bound PMNS names) and, with -search, looks a metric
// name substring up across every archive previously indexed into the
// catalog (pkg/archive/catalog). Grounded on the original pmdumplog's
// section-by-section metadata dump, supplemented with a catalog-backed
// -search flag.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pmcore/pmcore/internal/option"
	"github.com/pmcore/pmcore/pkg/archive"
	"github.com/pmcore/pmcore/pkg/archive/catalog"
	"github.com/pmcore/pmcore/pkg/log"
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

func main() {
	archivePath := flag.String("a", "", "archive base name or folio file")
	catalogPath := flag.String("catalog", "", "path to the cross-archive search catalog database")
	search := flag.String("search", "", "search the catalog for a metric name substring instead of dumping an archive")
	flag.Parse()

	if *search != "" {
		if *catalogPath == "" {
			log.Fatal("-search requires -catalog")
		}
		if err := runSearch(*catalogPath, *search); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "usage: pmdump -a <archive|folio> [-catalog db -search pattern]")
		os.Exit(2)
	}

	bases := []string{*archivePath}
	if looksLikeFolio(*archivePath) {
		var err error
		bases, err = option.ParseArchiveFolio(*archivePath)
		if err != nil {
			log.Fatal(err)
		}
	}

	var cat *catalog.Catalog
	if *catalogPath != "" {
		var err error
		cat, err = catalog.Open(*catalogPath)
		if err != nil {
			log.Fatal(err)
		}
		defer cat.Close()
	}

	for _, base := range bases {
		if err := dumpOne(base, cat); err != nil {
			log.Errorf("pmdump: %s: %v", base, err)
		}
	}
}

func looksLikeFolio(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	const magic = "PCPFolio"
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}

func dumpOne(base string, cat *catalog.Catalog) error {
	dir, name := splitArchivePath(base)
	backend := archive.NewFSBackend(archive.FSArchiveConfig{Path: dir})
	store, err := archive.Load(backend, name)
	if err != nil {
		return err
	}

	fmt.Printf("archive %s:\n", base)
	store.Each(func(pmid pdu.MetricID, d wire.Descriptor, names []string) {
		fmt.Printf("  %v type=%d indom=%v sem=%d units=%#x names=%v\n",
			pmid, d.Type, pdu.InstDomID(d.Indom), d.Sem, d.Units.Pack(), names)
	})

	if cat != nil {
		if err := cat.Index(base, store); err != nil {
			return fmt.Errorf("indexing %s into catalog: %w", base, err)
		}
	}
	return nil
}

func runSearch(catalogPath, pattern string) error {
	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	matches, err := cat.Search("%" + pattern + "%")
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%s\t%v\t%s\n", m.Archive, m.PMID, m.Name)
	}
	return nil
}

// splitArchivePath separates an archive base path into the directory
// FSBackend opens and the bare base name it looks up within it.
func splitArchivePath(base string) (dir, name string) {
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			return base[:i], base[i+1:]
		}
	}
	return ".", base
}
