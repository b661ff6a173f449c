//go:build !windows

package model

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/piper-export/internal/config"
	"github.com/example/piper-export/internal/onnxmeta"
	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

type VerifyOptions struct {
	ModelPath string
	Runtime   config.RuntimeConfig
	Stdout    io.Writer
	Stderr    io.Writer
}

var openSession = openSessionImpl

// VerifyLoadable checks that the model parses and that ONNX Runtime can
// build a session from it.
func VerifyLoadable(opts VerifyOptions) error {
	if opts.ModelPath == "" {
		return errors.New("model path is required")
	}

	if opts.Runtime.ORTAPIVersion == 0 {
		opts.Runtime.ORTAPIVersion = 23
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	m, err := onnxmeta.Load(opts.ModelPath)
	if err != nil {
		return err
	}

	info, err := DetectRuntime(opts.Runtime)
	if err != nil {
		return err
	}

	slog.Debug("verifying model", "path", opts.ModelPath, "ort_library", info.LibraryPath,
		"ort_version", info.Version, "metadata_entries", len(m.Metadata()))

	err = openSession(info.LibraryPath, opts.Runtime.ORTAPIVersion, opts.ModelPath)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", opts.ModelPath, err)
		return fmt.Errorf("verify %s: %w", opts.ModelPath, err)
	}

	_, _ = fmt.Fprintf(opts.Stdout, "PASS %s (onnxruntime %s)\n", opts.ModelPath, info.Version)

	return nil
}

func openSessionImpl(library string, apiVersion uint32, modelPath string) error {
	runtime, err := ort.NewRuntime(library, apiVersion)
	if err != nil {
		return fmt.Errorf("initialize ONNX Runtime (lib=%q api=%d): %w", library, apiVersion, err)
	}

	defer func() { _ = runtime.Close() }()

	env, err := runtime.NewEnv("piperexport-model-verify", ort.LoggingLevelWarning)
	if err != nil {
		return fmt.Errorf("create ONNX Runtime env: %w", err)
	}
	defer env.Close()

	s, err := runtime.NewSession(env, modelPath, nil)
	if err != nil {
		return fmt.Errorf("load session model: %w", err)
	}

	s.Close()

	return nil
}
