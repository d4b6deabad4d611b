package protocoldir

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/internal"
)

// Source loads protocol definitions from a directory of JSON documents, one
// definition per file. It backs bench setups that run without a database;
// the registry validates whatever is loaded, so files are parsed as-is.
type Source struct {
	dir    string
	logger *internal.Logger
}

// NewSource creates a directory-backed protocol source
func NewSource(dir string) *Source {
	return &Source{dir: dir, logger: internal.DefaultLogger.Prefixed("protocoldir")}
}

// Fetch returns the definition for id@version, rescanning the directory so
// edited files take effect on the next registry load
func (s *Source) Fetch(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	defs, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.ProtocolID == id && def.Version == version {
			return def, nil
		}
	}
	return nil, core.NewNotFoundError("protocol definition", fmt.Sprintf("%s@%s", id, version))
}

// List returns every definition in the directory, sorted by key
func (s *Source) List(ctx context.Context) ([]*protocol.Definition, error) {
	defs, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key() < defs[j].Key() })
	return defs, nil
}

func (s *Source) loadAll() ([]*protocol.Definition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol directory %s: %w", s.dir, err)
	}

	var defs []*protocol.Definition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var def protocol.Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		defs = append(defs, &def)
	}
	s.logger.Debug("Loaded %d protocol files from %s", len(defs), s.dir)
	return defs, nil
}
