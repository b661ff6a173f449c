package metadata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/example/piper-export/internal/onnxmeta"
)

// ErrSamePath is returned when the output would overwrite the input model.
var ErrSamePath = errors.New("output path must differ from input path")

// RewriteOptions controls Rewrite.
type RewriteOptions struct {
	InPath  string
	OutPath string
	Table   Table
	Atomic  bool
}

// Result describes a completed rewrite.
type Result struct {
	OutPath  string
	Previous []Entry
	Written  []Entry
}

// Rewrite loads the model at InPath, replaces its metadata with Table and
// writes the result to OutPath. The input file is never modified.
func Rewrite(opts RewriteOptions) (Result, error) {
	err := opts.Table.Validate()
	if err != nil {
		return Result{}, err
	}

	if samePath(opts.InPath, opts.OutPath) {
		return Result{}, fmt.Errorf("%w: %s", ErrSamePath, opts.OutPath)
	}

	m, err := onnxmeta.Load(opts.InPath)
	if err != nil {
		return Result{}, err
	}

	prev := m.Metadata()
	slog.Debug("loaded model", "path", opts.InPath, "ir_version", m.Info.IRVersion,
		"producer", m.Info.ProducerName, "metadata_entries", len(prev))

	m.SetMetadata(opts.Table)

	err = m.Save(opts.OutPath, opts.Atomic)
	if err != nil {
		return Result{}, err
	}

	slog.Info("wrote model metadata", "path", opts.OutPath, "replaced", len(prev), "written", len(opts.Table))

	return Result{OutPath: opts.OutPath, Previous: prev, Written: m.Metadata()}, nil
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}

	ai, err := os.Stat(a)
	if err != nil {
		return false
	}

	bi, err := os.Stat(b)
	if err != nil {
		return false
	}

	return os.SameFile(ai, bi)
}

// PrintResult prints the confirmation block listing every written entry.
func PrintResult(w io.Writer, res Result) error {
	if _, err := fmt.Fprint(w, "Model saved with complete metadata!\n\nMetadata added:\n"); err != nil {
		return err
	}

	return PrintEntries(w, res.Written)
}

// PrintEntries prints one "  key=value" line per entry.
func PrintEntries(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "  %s=%s\n", e.Key, e.Value); err != nil {
			return err
		}
	}

	return nil
}

// Show prints the header fields and metadata entries of the model at path.
func Show(w io.Writer, path string) error {
	m, err := onnxmeta.Load(path)
	if err != nil {
		return err
	}

	entries := m.Metadata()

	_, err = fmt.Fprintf(w, "model: %s\nir_version: %d\nproducer: %s %s\nmetadata (%d entries):\n",
		path, m.Info.IRVersion, m.Info.ProducerName, m.Info.ProducerVersion, len(entries))
	if err != nil {
		return err
	}

	return PrintEntries(w, entries)
}
