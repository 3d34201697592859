package engine

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Profiles []EnhancementProfile `yaml:"profiles"`
}

// LoadCatalog reads a YAML catalog table from path.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	return DecodeCatalog(f)
}

// DecodeCatalog parses a YAML catalog table and validates it.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("%w: catalog has no profiles", ErrInvalidProfile)
	}
	return NewCatalog(file.Profiles...)
}

// EncodeCatalog writes the catalog as a YAML table that DecodeCatalog accepts.
func EncodeCatalog(w io.Writer, c *Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Profiles: c.Profiles()}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
