package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/piper-export/internal/artifact"
)

// Process exit statuses, one per error kind.
const (
	exitFailure = 1
	exitLoad    = 2
	exitSchema  = 3
	exitWrite   = 4
)

func main() {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, artifact.ErrLoad):
		return exitLoad
	case errors.Is(err, artifact.ErrSchema):
		return exitSchema
	case errors.Is(err, artifact.ErrWrite):
		return exitWrite
	default:
		return exitFailure
	}
}
