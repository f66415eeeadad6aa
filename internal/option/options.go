package option

// options.go is the option-parsing glue described in spec §4.I: it
// canonicalises CLI flags and PCP_* environment variables into the
// record consumed by §4.E (archive list), §4.F (request-port
// manager), and context selection. Grounded on getopt.c's option
// table and argument-combination validation; implemented with stdlib
// flag since the teacher's own entrypoints do the same (the spec
// scopes CLI parsing beyond the consumed subset out as a Non-goal —
// see SPEC_FULL.md).

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pmcore/pmcore/internal/reqport"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// Context selects whether time-window options apply: they are only
// legal once an archive context has been chosen.
type Context int

const (
	ContextHost Context = iota
	ContextArchive
)

// Options is the canonicalised record every entrypoint builds from
// argv + environment before handing pieces of it to reqport, the
// archive store, or context selection.
type Options struct {
	Archives []string
	Hosts    []string
	Context  Context

	// Zone is the -Z argument (explicit IANA zone name); HostZone is
	// -z (use the source's own zone). Mutually exclusive.
	Zone     string
	HostZone bool

	// Window bounds are only honoured when Context == ContextArchive.
	WindowStart string
	WindowEnd   string

	Ports reqport.PortSpec

	errors []string
}

// Parse builds Options from argv (excluding argv[0]) and the process
// environment, applying PCP_* overrides the same way their CLI
// counterparts would (spec §4.I / §6).
func Parse(args []string, getenv func(string) string) (*Options, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	fs := flag.NewFlagSet("pmcore", flag.ContinueOnError)
	var (
		archive  = fs.String("a", "", "archive base name or folio file")
		host     = fs.String("h", "", "host to connect to")
		zone     = fs.String("Z", "", "use this timezone")
		hostZone = fs.Bool("z", false, "use the source's own timezone")
		start    = fs.String("S", "", "window start")
		end      = fs.String("T", "", "window end")
		port     = fs.Int("p", 0, "request port")
		family   = fs.String("family", "auto", "inet4, inet6, local, or auto")
		unixPath = fs.String("unixsocket", "", "local-socket path")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &Options{
		Ports: reqport.PortSpec{Port: *port, Path: *unixPath},
	}

	if env := getenv("PCP_ARCHIVE"); env != "" && *archive == "" {
		*archive = env
	}
	if env := getenv("PCP_HOST"); env != "" && *host == "" {
		*host = env
	}

	if *archive != "" {
		opts.Context = ContextArchive
		if looksLikeFolio(*archive) {
			archives, err := ParseArchiveFolio(*archive)
			if err != nil {
				return nil, err
			}
			opts.Archives = archives
		} else {
			opts.Archives = []string{*archive}
		}
	}
	if *host != "" {
		if opts.Context == ContextArchive {
			opts.errors = append(opts.errors, "only one of hosts or archives allowed")
		}
		opts.Hosts = append(opts.Hosts, *host)
	}

	opts.Zone = *zone
	opts.HostZone = *hostZone
	if opts.Zone != "" && opts.HostZone {
		opts.errors = append(opts.errors, "-Z and -z are mutually exclusive")
	}

	opts.WindowStart = *start
	opts.WindowEnd = *end
	if (opts.WindowStart != "" || opts.WindowEnd != "") && opts.Context != ContextArchive {
		opts.errors = append(opts.errors, "time-window options are only legal for archive contexts")
	}

	opts.Ports.Family = parseFamily(*family)

	if len(opts.errors) > 0 {
		return nil, fmt.Errorf("%w: %s", pmerr.ErrProtocol, strings.Join(opts.errors, "; "))
	}
	return opts, nil
}

func parseFamily(s string) reqport.Family {
	switch strings.ToLower(s) {
	case "inet4":
		return reqport.FamilyInet4
	case "inet6":
		return reqport.FamilyInet6
	case "local":
		return reqport.FamilyLocal
	default:
		return reqport.FamilyAuto
	}
}

// PortFromEnv resolves a PCP_PORT-style environment override, falling
// back to def when unset or unparseable.
func PortFromEnv(getenv func(string) string, key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
