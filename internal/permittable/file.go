package permittable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML document listing additional or overriding endpoints.
//
//	endpoints:
//	  - path: /reports/*
//	    method: GET
//	    group: reporting
//	    acceptedTokenTypes: [TENANT]
type File struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

// Load reads a permittables file from disk
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading permittables: %w", err)
	}
	return Parse(data)
}

// Parse decodes a permittables document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing permittables: %w", err)
	}
	for i, e := range f.Endpoints {
		if _, err := normalize(e); err != nil {
			return nil, fmt.Errorf("permittables entry %d: %w", i, err)
		}
	}
	return &f, nil
}

// Build creates the registry from the default endpoint table extended by the
// file at path. An empty path uses the defaults alone.
func Build(application, path string, opts ...Option) (*Registry, error) {
	endpoints := DefaultEndpoints()
	if path != "" {
		f, err := Load(path)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, f.Endpoints...)
	}
	return NewRegistry(application, endpoints, opts...)
}
