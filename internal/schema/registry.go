package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultModel is the layout model that answers lookups for models without
// a dedicated mapping file.
const DefaultModel = ""

type layoutKey struct {
	typ   uint8
	model string
}

// Registry is a read-only lookup from (message type, inverter model) to a
// field layout, backed by a directory of JSON mapping files. Reload swaps
// the whole table atomically, independent of active connections.
type Registry struct {
	dir string
	log zerolog.Logger

	mu      sync.RWMutex
	layouts map[layoutKey]*Layout
}

func NewRegistry(dir string, log zerolog.Logger) (*Registry, error) {
	r := &Registry{dir: dir, log: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads every mapping file in the directory. On any error the
// previous table stays in place.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("schema: reading mapping directory %s: %w", r.dir, err)
	}

	layouts := make(map[layoutKey]*Layout)
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		layout, err := loadLayout(path)
		if err != nil {
			return err
		}
		key := layoutKey{typ: layout.Type, model: layout.Model}
		if prev, ok := layouts[key]; ok {
			return fmt.Errorf("schema: %s duplicates layout (type=0x%02x model=%q) from model %q",
				path, layout.Type, layout.Model, prev.Model)
		}
		layouts[key] = layout
		files++
	}
	if files == 0 {
		return fmt.Errorf("schema: no mapping files in %s", r.dir)
	}

	r.mu.Lock()
	r.layouts = layouts
	r.mu.Unlock()
	r.log.Info().Int("layouts", len(layouts)).Str("dir", r.dir).Msg("schema mappings loaded")
	return nil
}

// Lookup resolves a layout for the message type, preferring an exact model
// match and falling back to the default model. The second return is false
// when no layout covers the type at all; the decoder then emits a
// header-only message.
func (r *Registry) Lookup(msgType uint8, model string) (*Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.layouts[layoutKey{typ: msgType, model: model}]; ok {
		return l, true
	}
	l, ok := r.layouts[layoutKey{typ: msgType, model: DefaultModel}]
	return l, ok
}

func loadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	var layout Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}
	if len(layout.Fragments) == 0 {
		return nil, fmt.Errorf("schema: %s declares no fragments", path)
	}
	// Fragment names become message field keys, which must be unique
	// within one message.
	seen := make(map[string]struct{}, len(layout.Fragments))
	for i, f := range layout.Fragments {
		if f.Name == "" {
			return nil, fmt.Errorf("schema: %s fragment %d has no name", path, i)
		}
		if f.Length <= 0 || f.Offset < 0 {
			return nil, fmt.Errorf("schema: %s fragment %q has invalid bounds", path, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("schema: %s declares fragment %q twice", path, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return &layout, nil
}
