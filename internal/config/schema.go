// Package config loads and validates the pmcore program config,
// generalizing the teacher's internal/config + pkg/schema validate
// pattern: a JSON document validated against an embedded JSON Schema
// before decode, overlaid with a .env file at process start.
package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadSchemaFile
}

// Validate checks raw JSON config bytes against the embedded schema.
func Validate(r io.Reader) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("decoding config for validation: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config validation: %#v", err)
	}
	return nil
}
