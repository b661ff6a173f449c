// Package artifact reads and writes the files piperexport consumes and
// produces. Every failure is tagged with the kind of step that failed so
// callers can tell a bad input apart from an unwritable output.
package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Error kinds. Match them with errors.Is.
var (
	ErrLoad   = errors.New("load failed")
	ErrSchema = errors.New("unexpected structure")
	ErrWrite  = errors.New("write failed")
)

// Error records which kind of step failed, on which path, and why.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// LoadError tags err as an input failure. A nil err yields nil.
func LoadError(path string, err error) error { return wrap(ErrLoad, path, err) }

// SchemaError tags err as a structural mismatch in otherwise readable input.
func SchemaError(path string, err error) error { return wrap(ErrSchema, path, err) }

// WriteError tags err as an output failure.
func WriteError(path string, err error) error { return wrap(ErrWrite, path, err) }

func wrap(kind error, path string, err error) error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	return &Error{Kind: kind, Path: path, Err: err}
}

// ReadFile reads the whole file at path.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, LoadError(path, err)
	}

	return data, nil
}

// WriteFile creates path and hands a buffered writer to fill. With atomic
// set the content goes to a sibling temp file that is renamed over path only
// after fill and the flush succeed, so a failure never leaves a partial file.
// Without it path is truncated and written in place.
func WriteFile(path string, atomic bool, fill func(w io.Writer) error) error {
	if atomic {
		return writeAtomic(path, fill)
	}

	f, err := os.Create(path)
	if err != nil {
		return WriteError(path, err)
	}

	err = writeAndClose(f, fill)
	if err != nil {
		return WriteError(path, err)
	}

	return nil
}

func writeAtomic(path string, fill func(w io.Writer) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return WriteError(path, err)
	}

	tmpPath := tmp.Name()

	err = writeAndClose(tmp, fill)
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}

	if err == nil {
		err = os.Rename(tmpPath, path)
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return WriteError(path, err)
	}

	return nil
}

func writeAndClose(f *os.File, fill func(w io.Writer) error) error {
	bw := bufio.NewWriter(f)

	err := fill(bw)
	if err == nil {
		err = bw.Flush()
	}

	closeErr := f.Close()
	if err != nil {
		return err
	}

	return closeErr
}
