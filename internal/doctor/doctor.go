// Package doctor provides environment preflight checks for piperexport.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc reports the ONNX Runtime library path and version, or an
// error if none is usable.
type RuntimeFunc func() (path, version string, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// ModelPath is the exported ONNX model to post-process.
	ModelPath string
	// SidecarPath is the Piper JSON sidecar next to the model.
	SidecarPath string
	// EspeakDataDir is the espeak-ng-data directory the runtime loads phonemizer data from.
	EspeakDataDir string
	// SkipEspeakData skips the espeak-ng-data check (models without espeak).
	SkipEspeakData bool
	// Runtime locates ONNX Runtime. Nil skips the check.
	Runtime RuntimeFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	checkFile(&res, w, "model", cfg.ModelPath)
	checkFile(&res, w, "sidecar", cfg.SidecarPath)

	// ---- espeak-ng-data ---------------------------------------------------
	if cfg.SkipEspeakData {
		fmt.Fprintf(w, "%s espeak-ng-data: skipped\n", PassMark)
	} else if err := checkDir(cfg.EspeakDataDir); err != nil {
		res.fail(fmt.Sprintf("espeak-ng-data %q: %v", cfg.EspeakDataDir, err))
		fmt.Fprintf(w, "%s espeak-ng-data %s: %v\n", FailMark, cfg.EspeakDataDir, err)
	} else {
		fmt.Fprintf(w, "%s espeak-ng-data: %s\n", PassMark, cfg.EspeakDataDir)
	}

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.Runtime == nil {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	} else {
		path, ver, err := cfg.Runtime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, path, ver)
		}
	}

	return res
}

func checkFile(res *Result, w io.Writer, label, path string) {
	st, err := os.Stat(path)

	switch {
	case err != nil:
		res.fail(fmt.Sprintf("%s %q: %v", label, path, err))
		fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, label, path)
	case st.IsDir():
		res.fail(fmt.Sprintf("%s %q: is a directory", label, path))
		fmt.Fprintf(w, "%s %s %s: is a directory\n", FailMark, label, path)
	default:
		fmt.Fprintf(w, "%s %s: %s\n", PassMark, label, path)
	}
}

func checkDir(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return errors.New("not found")
	}

	if !st.IsDir() {
		return errors.New("not a directory")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return errors.New("empty directory")
	}

	return nil
}
