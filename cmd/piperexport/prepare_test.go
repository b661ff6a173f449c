package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrepare_WritesModelDirectory(t *testing.T) {
	f := newFixture(t, vietnameseSidecar)
	outDir := f.path("exported")

	out, err := f.run(t, "prepare", "--out-dir", outDir)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	entries := loadMetadata(t, filepath.Join(outDir, "model_fixed.onnx"))
	if len(entries) != 12 {
		t.Errorf("metadata entries = %d; want 12", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(outDir, "tokens.txt"))
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}

	if string(data) != "b 0\nb 1\na 2\n" {
		t.Errorf("tokens.txt = %q", data)
	}

	if !strings.Contains(out, "Model saved with complete metadata!") || !strings.Contains(out, "with 3 tokens") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPrepare_StopsOnSidecarError(t *testing.T) {
	f := newFixture(t, `{"phoneme_id_map": {"a": "oops"}}`)
	outDir := f.path("exported")

	_, err := f.run(t, "prepare", "--out-dir", outDir)
	if err == nil {
		t.Fatal("prepare succeeded; want schema error")
	}

	for _, name := range []string{"tokens.txt", "model_fixed.onnx"} {
		if _, statErr := os.Stat(filepath.Join(outDir, name)); !os.IsNotExist(statErr) {
			t.Errorf("%s must not be written (stat err %v)", name, statErr)
		}
	}
}

func TestPrepare_IgnoresUnrelatedSettings(t *testing.T) {
	f := newFixture(t, `{"phoneme_id_map": {"a": [2], "b": [0, 1]}, "language": "vi"}`)
	outDir := f.path("exported")

	_, err := f.run(t, "prepare", "--out-dir", outDir)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "tokens.txt"))
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}

	if string(data) != "b 0\nb 1\na 2\n" {
		t.Errorf("tokens.txt = %q", data)
	}
}
