// Package configsync merges harvested tokens into an external JSON
// configuration document and writes snapshot dumps for manual review.
package configsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tokenlift/tokenlift/internal/harvest"
)

// PersistenceError reports a config document that could not be read or
// written, with the path and underlying cause.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Update sets document[key] = value in the JSON object at path,
// preserving every other key. A missing document starts empty; a missing
// parent directory is created. The write is not atomic: a crash mid-write
// can corrupt the file, which is acceptable for a low-frequency
// single-user tool.
func Update(path, key, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &PersistenceError{Path: path, Op: "create parent directory for", Err: err}
	}

	document := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &document); err != nil {
			return &PersistenceError{Path: path, Op: "parse", Err: err}
		}
	case os.IsNotExist(err):
		// First run, start from an empty document.
	default:
		return &PersistenceError{Path: path, Op: "read", Err: err}
	}

	document[key] = value

	out, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Op: "serialize", Err: err}
	}

	if err := os.WriteFile(path, out, 0600); err != nil {
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}

	return nil
}

// DumpSnapshot serializes the full snapshot to a timestamped JSON file in
// dir and returns its path. Each dump is a complete overwrite-style
// artifact intended for manual inspection when the identifier finds
// nothing.
func DumpSnapshot(dir string, snap *harvest.Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", &PersistenceError{Path: dir, Op: "create", Err: err}
	}

	// Dashes instead of colons for filesystem compatibility.
	filename := time.Now().Format("2006-01-02T15-04-05") + ".json"
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", &PersistenceError{Path: path, Op: "serialize", Err: err}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", &PersistenceError{Path: path, Op: "write", Err: err}
	}

	return path, nil
}

// LoadSnapshot reads a snapshot dump back. Used by the offline identify
// command.
func LoadSnapshot(path string) (*harvest.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}

	snap := harvest.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, &PersistenceError{Path: path, Op: "parse", Err: err}
	}

	return snap, nil
}
