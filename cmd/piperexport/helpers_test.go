package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/example/piper-export/internal/onnxmeta"
	"github.com/example/piper-export/internal/testutil"
)

type fixture struct {
	dir     string
	model   string
	sidecar string
}

// newFixture writes a minimal model carrying a stale "voice" entry and a
// sidecar into a fresh directory.
func newFixture(t *testing.T, sidecarJSON string) fixture {
	t.Helper()

	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		model:   filepath.Join(dir, "model.onnx"),
		sidecar: filepath.Join(dir, "model.onnx.json"),
	}

	testutil.WriteFile(t, dir, "model.onnx", testutil.IdentityModel(testutil.MetadataProp("voice", "en")))

	testutil.WriteFile(t, dir, "model.onnx.json", []byte(sidecarJSON))

	return f
}

func (f fixture) path(name string) string { return filepath.Join(f.dir, name) }

// run executes the root command with paths pointed into the fixture.
func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	base := []string{
		"--paths-model=" + f.model,
		"--paths-sidecar=" + f.sidecar,
		"--paths-fixed-model=" + f.path("model_fixed.onnx"),
		"--paths-tokens=" + f.path("tokens.txt"),
		"--paths-espeak-data=" + f.path("espeak-ng-data"),
		"--log-level=error",
	}

	cmd := NewRootCmd()

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, base...))

	err := cmd.Execute()

	return out.String(), err
}

func loadMetadata(t *testing.T, path string) []onnxmeta.Entry {
	t.Helper()

	m, err := onnxmeta.Load(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}

	return m.Metadata()
}
