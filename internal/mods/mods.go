// Package mods enables and disables server mods by moving their directories
// between the server's mods folder and a holding folder.
package mods

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"serverdeck/internal/fsutil"
)

var (
	ErrInvalidName       = errors.New("invalid mod name")
	ErrNotFound          = errors.New("mod directory not found")
	ErrDestinationExists = errors.New("destination already exists")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBusy              = errors.New("mod directory is locked")
)

// ToggleError describes a failed move.
type ToggleError struct {
	Action string
	Name   string
	Path   string
	Kind   error
	Err    error
}

func (e *ToggleError) Error() string {
	switch e.Kind {
	case ErrNotFound:
		return fmt.Sprintf("cannot %s %q: mod directory not found at expected location", e.Action, e.Name)
	case ErrDestinationExists:
		return fmt.Sprintf("cannot %s %q: directory already exists at destination", e.Action, e.Name)
	case ErrPermissionDenied:
		return fmt.Sprintf("permission denied: cannot %s %q, check file permissions for %s", e.Action, e.Name, e.Path)
	case ErrBusy:
		return fmt.Sprintf("directory is locked: cannot %s %q, is the server running?", e.Action, e.Name)
	case ErrInvalidName:
		return fmt.Sprintf("cannot %s %q: invalid mod name", e.Action, e.Name)
	}
	return fmt.Sprintf("failed to %s %q: %v", e.Action, e.Name, e.Err)
}

func (e *ToggleError) Unwrap() []error {
	errs := []error{}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Toggle moves <serverDir>/mods/<name> to <disabledDir>/<name> when enabled
// is false, and back when it is true.
func Toggle(serverDir, disabledDir, name string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	if !validName(name) {
		return &ToggleError{Action: action, Name: name, Kind: ErrInvalidName}
	}

	if err := os.MkdirAll(disabledDir, 0o755); err != nil {
		return &ToggleError{Action: action, Name: name, Path: disabledDir, Kind: classify(err), Err: err}
	}

	enabledPath := filepath.Join(serverDir, "mods", name)
	disabledPath := filepath.Join(disabledDir, name)
	src, dst := enabledPath, disabledPath
	if enabled {
		src, dst = disabledPath, enabledPath
	}

	if _, err := os.Stat(src); err != nil {
		return &ToggleError{Action: action, Name: name, Path: src, Kind: ErrNotFound, Err: err}
	}
	if _, err := os.Stat(dst); err == nil {
		return &ToggleError{Action: action, Name: name, Path: dst, Kind: ErrDestinationExists}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &ToggleError{Action: action, Name: name, Path: dst, Kind: classify(err), Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		return &ToggleError{Action: action, Name: name, Path: src, Kind: classify(err), Err: err}
	}
	return nil
}

// List returns the enabled and disabled mod directory names.
func List(serverDir, disabledDir string) (enabled, disabled []string, err error) {
	enabled, err = listDirs(filepath.Join(serverDir, "mods"))
	if err != nil {
		return nil, nil, err
	}
	disabled, err = listDirs(disabledDir)
	if err != nil {
		return nil, nil, err
	}
	return enabled, disabled, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := fsutil.ReadDirOrEmpty(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func classify(err error) error {
	switch {
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return ErrBusy
	}
	return nil
}
