package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmcore/pmcore/pkg/log"
)

// Backend abstracts where an archive's metadata log bytes come from —
// a local path (FSBackend, the primary and required backend) or a
// remote object store (S3Backend). Grounded on the teacher's
// pkg/archive.Backend abstraction (fsBackend.go / s3Backend.go), here
// adapted to fetch one opaque metadata-log byte stream per archive
// instead of a job's meta+data JSON pair.
type Backend interface {
	// Open returns the raw metadata log bytes for the archive named by
	// base (without the .meta/.meta.gz suffix).
	Open(base string) ([]byte, error)
	// List enumerates archive base names available under this backend.
	List() ([]string, error)
}

// FSArchiveConfig configures FSBackend: the directory tree holding
// "<base>.meta" or gzip-compressed "<base>.meta.gz" files.
type FSArchiveConfig struct {
	Path string `json:"path"`
}

// FSBackend reads archive metadata logs directly off a local path.
type FSBackend struct {
	path string
}

func NewFSBackend(cfg FSArchiveConfig) *FSBackend {
	return &FSBackend{path: cfg.Path}
}

func (b *FSBackend) metaPath(base string) (string, bool) {
	plain := filepath.Join(b.path, base+".meta")
	if fileExists(plain) {
		return plain, false
	}
	gz := filepath.Join(b.path, base+".meta.gz")
	if fileExists(gz) {
		return gz, true
	}
	return "", false
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Open reads and, if necessary, gzip-decompresses the metadata log for
// base.
func (b *FSBackend) Open(base string) ([]byte, error) {
	path, compressed := b.metaPath(base)
	if path == "" {
		return nil, fmt.Errorf("archive %q: no metadata log under %s", base, b.path)
	}
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("FSBackend.Open(%q): %v", base, err)
		return nil, err
	}
	defer f.Close()

	if !compressed {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Errorf("FSBackend.Open(%q): %v", base, err)
		}
		return data, err
	}

	r, err := gzip.NewReader(f)
	if err != nil {
		log.Errorf("FSBackend.Open(%q): gzip: %v", base, err)
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// List enumerates every archive base name under the backend's root,
// recognizing both plain and gzip-compressed metadata logs.
func (b *FSBackend) List() ([]string, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		log.Errorf("FSBackend.List(): %v", err)
		return nil, err
	}
	seen := make(map[string]bool)
	var bases []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var base string
		switch {
		case strings.HasSuffix(name, ".meta.gz"):
			base = strings.TrimSuffix(name, ".meta.gz")
		case strings.HasSuffix(name, ".meta"):
			base = strings.TrimSuffix(name, ".meta")
		default:
			continue
		}
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}
	return bases, nil
}

// Load reads base's metadata log from backend and builds a Store from
// it in one step.
func Load(backend Backend, base string) (*Store, error) {
	data, err := backend.Open(base)
	if err != nil {
		return nil, err
	}
	s := NewStore()
	if err := s.Load(data); err != nil {
		return nil, err
	}
	return s, nil
}
