package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeMapping(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

const defaultData4 = `{
	"model": "",
	"message_type": 4,
	"fragments": [
		{"name": "inverter_sn", "offset": 0, "length": 10, "type": "text"}
	]
}`

const micData4 = `{
	"model": "mic-600tl-x",
	"message_type": 4,
	"fragments": [
		{"name": "inverter_sn", "offset": 8, "length": 10, "type": "text"},
		{"name": "pv_power", "offset": 20, "length": 4, "type": "float", "fraction": 10}
	]
}`

func TestRegistryLookupWithModelFallback(t *testing.T) {
	dir := t.TempDir()
	writeMapping(t, dir, "default.json", defaultData4)
	writeMapping(t, dir, "mic.json", micData4)

	r, err := NewRegistry(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	exact, ok := r.Lookup(4, "mic-600tl-x")
	if !ok || len(exact.Fragments) != 2 {
		t.Fatalf("exact lookup: ok=%v", ok)
	}
	fallback, ok := r.Lookup(4, "unknown-model")
	if !ok || len(fallback.Fragments) != 1 {
		t.Fatalf("fallback lookup: ok=%v", ok)
	}
	if _, ok := r.Lookup(0x19, "mic-600tl-x"); ok {
		t.Fatalf("lookup for unregistered type succeeded")
	}
}

func TestRegistryReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeMapping(t, dir, "default.json", defaultData4)

	r, err := NewRegistry(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, ok := r.Lookup(4, "mic-600tl-x"); !ok {
		t.Fatalf("default layout missing before reload")
	}

	writeMapping(t, dir, "mic.json", micData4)
	if err := r.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	exact, ok := r.Lookup(4, "mic-600tl-x")
	if !ok || len(exact.Fragments) != 2 {
		t.Fatalf("model layout missing after reload")
	}
}

func TestRegistryReloadKeepsOldTableOnError(t *testing.T) {
	dir := t.TempDir()
	writeMapping(t, dir, "default.json", defaultData4)

	r, err := NewRegistry(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	writeMapping(t, dir, "broken.json", "{not json")
	if err := r.Reload(); err == nil {
		t.Fatalf("reload of broken mapping succeeded")
	}
	if _, ok := r.Lookup(4, ""); !ok {
		t.Fatalf("previous table lost after failed reload")
	}
}

func TestRegistryRejectsEmptyDirectory(t *testing.T) {
	if _, err := NewRegistry(t.TempDir(), zerolog.Nop()); err == nil {
		t.Fatalf("empty mapping directory accepted")
	}
}

func TestRegistryRejectsDuplicateFragmentNames(t *testing.T) {
	dir := t.TempDir()
	writeMapping(t, dir, "dup.json", `{
		"model": "",
		"message_type": 4,
		"fragments": [
			{"name": "inverter_sn", "offset": 0, "length": 10, "type": "text"},
			{"name": "inverter_sn", "offset": 30, "length": 10, "type": "text"}
		]
	}`)
	if _, err := NewRegistry(dir, zerolog.Nop()); err == nil {
		t.Fatalf("layout with duplicate fragment names accepted")
	}

	// A duplicate arriving via reload fails the same way and keeps the
	// previous table serving lookups.
	good := t.TempDir()
	writeMapping(t, good, "default.json", defaultData4)
	r, err := NewRegistry(good, zerolog.Nop())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	writeMapping(t, good, "dup.json", `{
		"model": "",
		"message_type": 25,
		"fragments": [
			{"name": "datalogger_sn", "offset": 0, "length": 10, "type": "text"},
			{"name": "datalogger_sn", "offset": 10, "length": 10, "type": "text"}
		]
	}`)
	if err := r.Reload(); err == nil {
		t.Fatalf("reload of duplicate fragment names succeeded")
	}
	if _, ok := r.Lookup(4, ""); !ok {
		t.Fatalf("previous table lost after failed reload")
	}
}

func TestRegistryRejectsInvalidFragments(t *testing.T) {
	dir := t.TempDir()
	writeMapping(t, dir, "bad.json", `{
		"model": "",
		"message_type": 4,
		"fragments": [{"name": "", "offset": 0, "length": 2, "type": "int"}]
	}`)
	if _, err := NewRegistry(dir, zerolog.Nop()); err == nil {
		t.Fatalf("nameless fragment accepted")
	}
}
