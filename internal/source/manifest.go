package source

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one extract listed in a manifest.
type Entry struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// Manifest lists the extracts that make up a full load.
type Manifest struct {
	Sources []Entry `yaml:"sources"`
}

// LoadManifest reads a YAML manifest:
//
//	sources:
//	  - name: "202401"
//	    uri: gs://bucket/extracts/202401.txt
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadManifest: read %q: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ParseManifest: %w", err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("ParseManifest: no sources listed")
	}
	for i, e := range m.Sources {
		if strings.TrimSpace(e.URI) == "" {
			return nil, fmt.Errorf("ParseManifest: source %d has no uri", i)
		}
	}
	return &m, nil
}

// FromURIs builds a manifest from a plain URI list, as given by a
// comma-separated setting.
func FromURIs(uris []string) *Manifest {
	m := &Manifest{}
	for _, u := range uris {
		if u = strings.TrimSpace(u); u != "" {
			m.Sources = append(m.Sources, Entry{URI: u})
		}
	}
	return m
}

// Build turns every entry into a Source.
func (m *Manifest) Build(deps Deps) ([]Source, error) {
	out := make([]Source, 0, len(m.Sources))
	for _, e := range m.Sources {
		s, err := FromURI(e.URI, deps)
		if err != nil {
			return nil, fmt.Errorf("Manifest.Build: %w", err)
		}
		out = append(out, Named(e.Name, s))
	}
	return out, nil
}
