package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewDefaultOptions(t *testing.T) {
	opts := NewDefaultOptions("")
	if opts.Dir != DefaultDirectory {
		t.Errorf("expected dir %s, got %s", DefaultDirectory, opts.Dir)
	}
	if opts.Backend != BackendMmap {
		t.Errorf("expected backend %s, got %s", BackendMmap, opts.Backend)
	}
	if opts.Hasher != HasherIdentity {
		t.Errorf("expected hasher %s, got %s", HasherIdentity, opts.Hasher)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("expected default options to be valid, got %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty dir", func(o *Options) { o.Dir = "" }},
		{"unknown backend", func(o *Options) { o.Backend = "tape" }},
		{"unknown hasher", func(o *Options) { o.Hasher = "crc" }},
		{"unknown log level", func(o *Options) { o.LogLevel = "loud" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := NewDefaultOptions("/tmp/pmhash")
			tc.mutate(opts)
			if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestOptionsSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "pmhash.json")
	opts := NewDefaultOptions("/var/lib/pmhash")
	opts.Backend = BackendDirect
	opts.Hasher = HasherMurmur3
	opts.MaxUnits = 8
	opts.ClearOnClose = true
	if err := opts.Save(path); err != nil {
		t.Fatalf("failed to save options: %v", err)
	}

	loaded, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("failed to load options: %v", err)
	}
	if *loaded != *opts {
		t.Errorf("expected %+v, got %+v", *opts, *loaded)
	}
}

func TestLoadOptionsMissing(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrOptionsNotFound) {
		t.Errorf("expected ErrOptionsNotFound, got %v", err)
	}
}
