package calib

import (
	"context"
	"path/filepath"
)

// Source resolves calibration tables by name. Both the flat-file mode and
// the registry mode satisfy it, so the pipeline never knows where its
// tables came from.
type Source interface {
	Load(ctx context.Context, name string) (*Table, error)
}

// FileSource treats names as paths to flat-file tables. Relative names are
// resolved against Dir; an empty Dir leaves them relative to the working
// directory.
type FileSource struct {
	Dir string
}

// Path returns the file a table name refers to.
func (s FileSource) Path(name string) string {
	if s.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// Load implements Source.
func (s FileSource) Load(_ context.Context, name string) (*Table, error) {
	return LoadTableFile(s.Path(name))
}

// MapSource serves tables already held in memory, keyed by name.
type MapSource map[string]*Table

// Load implements Source.
func (m MapSource) Load(_ context.Context, name string) (*Table, error) {
	t, ok := m[name]
	if !ok {
		return nil, &notFoundError{name: name}
	}
	return t, nil
}

type notFoundError struct {
	label string
	name  string
}

func (e *notFoundError) Error() string {
	if e.label == "" {
		return "calibration table " + e.name + " not found"
	}
	return "calibration table " + e.name + " not found under label " + e.label
}

func (e *notFoundError) Unwrap() error { return ErrLabelNotFound }
