//go:build windows

package model

import (
	"errors"
	"io"

	"github.com/example/piper-export/internal/config"
)

type VerifyOptions struct {
	ModelPath string
	Runtime   config.RuntimeConfig
	Stdout    io.Writer
	Stderr    io.Writer
}

func VerifyLoadable(_ VerifyOptions) error {
	return errors.New("onnx model verification is unavailable on windows in this build")
}
