package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrInvalidOptions  = errors.New("invalid options")
	ErrOptionsNotFound = errors.New("options file not found")
)

// Storage backends understood by the pager.
const (
	BackendMmap   = "mmap"
	BackendDirect = "direct"
)

// Key hashers understood by the hash index.
const (
	HasherIdentity = "identity"
	HasherXxHash   = "xxhash"
	HasherMurmur3  = "murmur3"
)

// Options configures a single hash index instance and its backing directory.
type Options struct {
	Dir          string `json:"dir"`
	ClearOnClose bool   `json:"clear_on_close"` // erase the backing directory on clean shutdown
	Backend      string `json:"backend"`
	Hasher       string `json:"hasher"`
	MaxUnits     uint32 `json:"max_units"` // 0 means unlimited
	LogLevel     string `json:"log_level"`
	LogFile      string `json:"log_file,omitempty"`
}

// NewDefaultOptions returns the options used when nothing else is configured.
func NewDefaultOptions(dir string) *Options {
	if dir == "" {
		dir = DefaultDirectory
	}
	return &Options{
		Dir:      dir,
		Backend:  BackendMmap,
		Hasher:   HasherIdentity,
		LogLevel: "info",
	}
}

// Validate checks if the options are usable.
func (o *Options) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: backing directory not specified", ErrInvalidOptions)
	}
	switch o.Backend {
	case BackendMmap, BackendDirect:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidOptions, o.Backend)
	}
	switch o.Hasher {
	case HasherIdentity, HasherXxHash, HasherMurmur3:
	default:
		return fmt.Errorf("%w: unknown hasher %q", ErrInvalidOptions, o.Hasher)
	}
	switch o.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidOptions, o.LogLevel)
	}
	return nil
}

// LoadOptions reads options from a JSON file, filling unset fields with defaults.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrOptionsNotFound
		}
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	opts := NewDefaultOptions("")
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Save writes the options to path, replacing any previous file atomically.
func (o *Options) Save(path string) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename options: %w", err)
	}
	return nil
}
