// Package production provides production integrations: catalog persistence,
// event publishing and visualization of the interpreter stack.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/comalice/adlayers/internal/primitives"
)

// JSONPersister is a file-based catalog store using JSON serialization.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(ctx context.Context, catalog *primitives.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	fn := filepath.Join(p.dir, catalog.ID+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *JSONPersister) Load(ctx context.Context, id string) (*primitives.Catalog, error) {
	return loadCatalog(filepath.Join(p.dir, id+".json"), id)
}

// YAMLPersister is a file-based catalog store using YAML serialization.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, catalog *primitives.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	fn := filepath.Join(p.dir, catalog.ID+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *YAMLPersister) Load(ctx context.Context, id string) (*primitives.Catalog, error) {
	return loadCatalog(filepath.Join(p.dir, id+".yaml"), id)
}

// LoadCatalogFile decodes the catalog at path. The format follows the file
// extension; a catalog without an ID takes the file's base name.
func LoadCatalogFile(path string) (*primitives.Catalog, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return loadCatalog(path, id)
}

// LoadCatalogDir loads every .json, .yaml and .yml catalog in dir
// concurrently. Catalogs are returned sorted by ID.
func LoadCatalogDir(ctx context.Context, dir string) ([]*primitives.Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	catalogs := make([]*primitives.Catalog, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := LoadCatalogFile(path)
			if err != nil {
				return err
			}
			catalogs[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(catalogs, func(i, j int) bool { return catalogs[i].ID < catalogs[j].ID })
	return catalogs, nil
}

func loadCatalog(fn, id string) (*primitives.Catalog, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog %q: %w", id, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}

	var catalog primitives.Catalog
	if filepath.Ext(fn) == ".json" {
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("%s: json unmarshal: %w", fn, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("%s: yaml unmarshal: %w", fn, err)
		}
	}
	if catalog.ID == "" {
		catalog.ID = id
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("%s: catalog validation after load: %w", fn, err)
	}
	return &catalog, nil
}
