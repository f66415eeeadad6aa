package option

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// folioMagic and folioVersion are the two literal header lines every
// archive folio file must begin with, per getopt.c's
// __pmAddOptArchiveFolio.
const (
	folioMagic   = "PCPFolio"
	folioVersion = "Version: 1"
)

// ParseArchiveFolio reads a folio file and returns the list of
// archive paths it names, each resolved relative to the folio's own
// directory (not the caller's working directory).
func ParseArchiveFolio(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive folio %s: %v", pmerr.ErrResource, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: archive folio %s has no header", pmerr.ErrProtocol, path)
	}
	if !strings.HasPrefix(scanner.Text(), folioMagic) {
		return nil, fmt.Errorf("%w: archive folio %s has bad magic", pmerr.ErrProtocol, path)
	}
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: archive folio %s has no version", pmerr.ErrProtocol, path)
	}
	if !strings.HasPrefix(scanner.Text(), folioVersion) {
		return nil, fmt.Errorf("%w: unknown version archive folio %s", pmerr.ErrProtocol, path)
	}

	dir := filepath.Dir(path)
	line := 2
	var archives []string
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !strings.HasPrefix(text, "Archive:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(text, "Archive:"))
		if len(fields) < 1 {
			return nil, fmt.Errorf("%w: missing host on archive folio line %d", pmerr.ErrProtocol, line)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: missing path on archive folio line %d", pmerr.ErrProtocol, line)
		}
		archives = append(archives, filepath.Join(dir, fields[1]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading archive folio %s: %v", pmerr.ErrResource, path, err)
	}
	return archives, nil
}

// looksLikeFolio reports whether the file at path begins with the
// folio magic, so callers can distinguish a folio from a plain
// archive base name without committing to a parse.
func looksLikeFolio(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	return strings.HasPrefix(string(firstLine), folioMagic)
}
