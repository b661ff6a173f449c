package main

import (
	"os"
	"testing"
)

func TestModelVerifyCmd_Flags(t *testing.T) {
	cmd := newModelVerifyCmd()

	f := cmd.Flags().Lookup("ort-api-version")
	if f == nil {
		t.Fatal("flag --ort-api-version not registered")
	}

	if f.DefValue != "0" {
		t.Errorf("--ort-api-version default = %q; want %q", f.DefValue, "0")
	}
}

func TestModelVerify_RejectsInvalidModel(t *testing.T) {
	f := newFixture(t, vietnameseSidecar)

	broken := f.path("broken.onnx")
	if err := os.WriteFile(broken, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	_, err := f.run(t, "model", "verify", broken)
	if err == nil {
		t.Fatal("model verify succeeded on an invalid model")
	}
}
