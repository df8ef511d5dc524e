// Package reference loads the reflection snapshot of a running interpreter
// and builds the reference catalog from it.
//
// Snapshots are JSON as produced by the dump script, or msgpack when
// re-encoded by WriteCache for faster reloads.
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is everything reflection reports for one interpreter version.
type Snapshot struct {
	Version   string     `json:"version" msgpack:"version"`
	Functions []Function `json:"functions" msgpack:"functions"`
	Classes   []Class    `json:"classes" msgpack:"classes"`
	Constants []Constant `json:"constants" msgpack:"constants"`
}

// Function is a global function or a method.
type Function struct {
	Name       string      `json:"name" msgpack:"name"`
	Namespace  string      `json:"namespace,omitempty" msgpack:"namespace,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty" msgpack:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty" msgpack:"return_type,omitempty"`
	Deprecated bool        `json:"deprecated,omitempty" msgpack:"deprecated,omitempty"`

	// Method-only fields.
	Visibility string `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
	Static     bool   `json:"static,omitempty" msgpack:"static,omitempty"`
	Final      bool   `json:"final,omitempty" msgpack:"final,omitempty"`
	Abstract   bool   `json:"abstract,omitempty" msgpack:"abstract,omitempty"`
}

// Parameter is one reflected parameter.
type Parameter struct {
	Name       string `json:"name" msgpack:"name"`
	Type       string `json:"type,omitempty" msgpack:"type,omitempty"`
	Optional   bool   `json:"optional,omitempty" msgpack:"optional,omitempty"`
	Variadic   bool   `json:"variadic,omitempty" msgpack:"variadic,omitempty"`
	ByRef      bool   `json:"by_ref,omitempty" msgpack:"by_ref,omitempty"`
	Default    string `json:"default,omitempty" msgpack:"default,omitempty"`
	Deprecated bool   `json:"deprecated,omitempty" msgpack:"deprecated,omitempty"`
}

// Class is a reflected class, interface or enum.
type Class struct {
	Kind       string     `json:"kind" msgpack:"kind"`
	Name       string     `json:"name" msgpack:"name"`
	Namespace  string     `json:"namespace,omitempty" msgpack:"namespace,omitempty"`
	Parent     string     `json:"parent,omitempty" msgpack:"parent,omitempty"`
	Interfaces []string   `json:"interfaces,omitempty" msgpack:"interfaces,omitempty"`
	Final      bool       `json:"final,omitempty" msgpack:"final,omitempty"`
	Abstract   bool       `json:"abstract,omitempty" msgpack:"abstract,omitempty"`
	Readonly   bool       `json:"readonly,omitempty" msgpack:"readonly,omitempty"`
	Methods    []Function `json:"methods,omitempty" msgpack:"methods,omitempty"`
	Properties []Property `json:"properties,omitempty" msgpack:"properties,omitempty"`
	Constants  []Constant `json:"constants,omitempty" msgpack:"constants,omitempty"`
	Cases      []Constant `json:"cases,omitempty" msgpack:"cases,omitempty"`
}

// Property is a reflected property.
type Property struct {
	Name       string `json:"name" msgpack:"name"`
	Type       string `json:"type,omitempty" msgpack:"type,omitempty"`
	Visibility string `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
	Static     bool   `json:"static,omitempty" msgpack:"static,omitempty"`
	Readonly   bool   `json:"readonly,omitempty" msgpack:"readonly,omitempty"`
}

// Constant is a global constant, class constant or enum case.
type Constant struct {
	Name       string `json:"name" msgpack:"name"`
	Namespace  string `json:"namespace,omitempty" msgpack:"namespace,omitempty"`
	Value      string `json:"value,omitempty" msgpack:"value,omitempty"`
	Type       string `json:"type,omitempty" msgpack:"type,omitempty"`
	Visibility string `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
	Final      bool   `json:"final,omitempty" msgpack:"final,omitempty"`
}

// Format is a snapshot encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// FormatFor picks the encoding from a file extension. Anything other than
// .msgpack or .mp is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return FormatMsgpack
	}
	return FormatJSON
}

// Decode reads a snapshot in the given format.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var snap Snapshot
	var err error
	switch f {
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&snap)
	default:
		err = json.NewDecoder(r).Decode(&snap)
	}
	if err != nil {
		return nil, fmt.Errorf("reference: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Encode writes snap in the given format.
func Encode(w io.Writer, snap *Snapshot, f Format) error {
	var err error
	switch f {
	case FormatMsgpack:
		err = msgpack.NewEncoder(w).Encode(snap)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(snap)
	}
	if err != nil {
		return fmt.Errorf("reference: encode snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot, choosing the format by extension.
func LoadFile(path string) (*Snapshot, error) {
	return loadAs(path, FormatFor(path))
}

func loadAs(path string, format Format) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reference: open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f, format)
}

// WriteCache stores snap as msgpack at path. The file is written to a
// temporary name first and renamed into place.
func WriteCache(path string, snap *Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("reference: write cache: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "snapshot-*")
	if err != nil {
		return fmt.Errorf("reference: write cache: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err = Encode(f, snap, FormatMsgpack); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("reference: write cache: %w", err)
	}
	return os.Rename(f.Name(), path)
}

// LoadCached returns the msgpack cache at cachePath when it is newer than
// the JSON snapshot at path, and otherwise reads path and refreshes the
// cache. An empty cachePath disables caching. A failure to refresh the
// cache is returned together with the snapshot.
func LoadCached(path, cachePath string) (*Snapshot, error) {
	if cachePath == "" {
		return LoadFile(path)
	}
	src, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reference: stat snapshot: %w", err)
	}
	if cached, err := os.Stat(cachePath); err == nil && !cached.ModTime().Before(src.ModTime()) {
		if snap, err := loadAs(cachePath, FormatMsgpack); err == nil {
			return snap, nil
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reference: stat cache: %w", err)
	}
	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := WriteCache(cachePath, snap); err != nil {
		return snap, err
	}
	return snap, nil
}
