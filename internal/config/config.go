package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pmcore/pmcore/internal/reqport"
)

// ArchiveConfig selects and configures an archive backend (spec §4.E).
type ArchiveConfig struct {
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// LDAPConfig configures the LDAP AUTH mechanism.
type LDAPConfig struct {
	URL    string `json:"url"`
	BindDN string `json:"bindDN"`
}

// DiscoveryConfig configures component H.
type DiscoveryConfig struct {
	Enabled         bool     `json:"enabled"`
	Subnets         []string `json:"subnets,omitempty"`
	Ports           []int    `json:"ports,omitempty"`
	ScriptDir       string   `json:"scriptDir,omitempty"`
	IntervalSeconds int      `json:"intervalSeconds,omitempty"`
	CandidateFilter string   `json:"candidateFilter,omitempty"`
	NATSURL         string   `json:"natsURL,omitempty"`
	NATSSubject     string   `json:"natsSubject,omitempty"`
}

// ProgramConfig is the decoded, validated program configuration.
type ProgramConfig struct {
	Address        string          `json:"address"`
	Port           int             `json:"port"`
	Family         string          `json:"family"`
	UnixSocketPath string          `json:"unixSocketPath,omitempty"`
	DiagAddr       string          `json:"diagAddr"`
	Archive        ArchiveConfig   `json:"archive"`
	CatalogDSN     string          `json:"catalogDSN,omitempty"`
	AuthMechanisms []string        `json:"authMechanisms,omitempty"`
	LDAP           *LDAPConfig     `json:"ldap,omitempty"`
	Discovery      DiscoveryConfig `json:"discovery"`
}

// Keys holds the process-wide defaults, overridden by Load.
var Keys = ProgramConfig{
	Address:  "any",
	Port:     44321,
	Family:   "auto",
	DiagAddr: ":8080",
	Archive: ArchiveConfig{
		Kind: "fs",
		Path: "./var/archive",
	},
	AuthMechanisms: []string{"PLAIN"},
}

// Load reads an optional .env overlay (ignored if absent), then reads
// and validates configPath against the embedded schema before
// decoding it over Keys's defaults. A missing configPath is not an
// error: the defaults stand alone.
func Load(configPath string) (*ProgramConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := Keys
	if configPath == "" {
		return &cfg, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	if err := Validate(bytes.NewReader(raw)); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", configPath, err)
	}
	return &cfg, nil
}

// PortSpec builds a reqport.PortSpec from the resolved configuration.
func (c *ProgramConfig) PortSpec() reqport.PortSpec {
	spec := reqport.PortSpec{
		Address: c.Address,
		Port:    c.Port,
		Path:    c.UnixSocketPath,
	}
	switch c.Family {
	case "inet4":
		spec.Family = reqport.FamilyInet4
	case "inet6":
		spec.Family = reqport.FamilyInet6
	case "local":
		spec.Family = reqport.FamilyLocal
	default:
		spec.Family = reqport.FamilyAuto
	}
	return spec
}
