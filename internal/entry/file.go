package entry

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// File is the declarative entries file. Entries listed here are owned by the
// file: they are created, updated and removed as the file changes.
type File struct {
	Entries []FileEntry `yaml:"entries"`
}

// FileEntry is one entry of the entries file.
type FileEntry struct {
	ID       string `yaml:"id"`
	Settings `yaml:",inline"`
}

var fileEntryIDRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// LoadFile reads and validates the entries file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entries file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes and validates an entries file, applying defaults.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse entries file: %w", err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for i := range f.Entries {
		e := &f.Entries[i]
		if !fileEntryIDRe.MatchString(e.ID) {
			return nil, fmt.Errorf("entries[%d]: %w: id %q must match %s", i, ErrInvalid, e.ID, fileEntryIDRe)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("entries[%d]: %w: duplicate id %q", i, ErrInvalid, e.ID)
		}
		seen[e.ID] = true

		e.Normalize()
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entries[%d] (%s): %w", i, e.ID, err)
		}
	}
	return &f, nil
}
