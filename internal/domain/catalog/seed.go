package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedFile is the YAML layout read by Seed.
type SeedFile struct {
	Catalogs []SeedCatalog `yaml:"catalogs"`
}

type SeedCatalog struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Items       []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// SeedResult counts what a seed run touched.
type SeedResult struct {
	Catalogs int
	Items    int
}

// DefaultSeed returns the catalogs shipped with the server.
func DefaultSeed() io.Reader {
	return strings.NewReader(string(defaultSeed))
}

// ParseSeed decodes and checks a seed file.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	seen := make(map[string]bool)
	for i, c := range f.Catalogs {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("catalog #%d: name is required", i+1)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("catalog %q listed twice", c.Name)
		}
		seen[c.Name] = true
		codes := make(map[string]bool)
		for j, it := range c.Items {
			if strings.TrimSpace(it.Code) == "" || strings.TrimSpace(it.Name) == "" {
				return nil, fmt.Errorf("catalog %q item #%d: code and name are required", c.Name, j+1)
			}
			if codes[it.Code] {
				return nil, fmt.Errorf("catalog %q: code %q listed twice", c.Name, it.Code)
			}
			codes[it.Code] = true
		}
	}
	return &f, nil
}

// Seed upserts every catalog and item of r in one transaction. Running it
// twice leaves the tables unchanged.
func (s *Service) Seed(ctx context.Context, r io.Reader) (SeedResult, error) {
	f, err := ParseSeed(r)
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res = SeedResult{}
		for _, sc := range f.Catalogs {
			c := &Catalog{Name: strings.TrimSpace(sc.Name), Description: sc.Description}
			if err := s.repo.UpsertCatalog(ctx, c); err != nil {
				return err
			}
			res.Catalogs++
			for _, si := range sc.Items {
				it := &Item{CatalogID: c.ID, Code: strings.TrimSpace(si.Code), Name: strings.TrimSpace(si.Name)}
				if err := s.repo.UpsertItem(ctx, it); err != nil {
					return err
				}
				res.Items++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.logger.Info().Int("catalogs", res.Catalogs).Int("items", res.Items).Msg("catalogs seeded")
	return res, nil
}
