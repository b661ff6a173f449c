// Package testutil provides shared fixtures and skip helpers for tests.
//
// Fixtures are built at the protobuf wire level so tests never depend on a
// committed binary model.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireONNXRuntime(t)
//	    path := testutil.WriteFile(t, t.TempDir(), "model.onnx", testutil.IdentityModel())
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the PIPEREXPORT_ORT_LIB env var, then the
// ORT_LIBRARY_PATH env var, then common system library paths.
func RequireONNXRuntime(tb testing.TB) {
	tb.Helper()

	for _, env := range []string{"PIPEREXPORT_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			_, err := os.Stat(p)
			if err == nil {
				return // found
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return
		}
	}
	// Fall back to common system locations.
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		_, err := os.Stat(p)
		if err == nil {
			return // found
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set PIPEREXPORT_ORT_LIB or ORT_LIBRARY_PATH")
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}

	return path
}

// Field appends one encoded field to a message under construction.
type Field func([]byte) []byte

// Message concatenates fields into an encoded protobuf message.
func Message(fields ...Field) []byte {
	var b []byte
	for _, f := range fields {
		b = f(b)
	}

	return b
}

// String is a length-delimited string field.
func String(num protowire.Number, s string) Field {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendString(b, s)
	}
}

// Bytes is a length-delimited field carrying an embedded message.
func Bytes(num protowire.Number, payload []byte) Field {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, payload)
	}
}

// Varint is a varint field.
func Varint(num protowire.Number, v uint64) Field {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, v)
	}
}

// MetadataProp is one metadata_props entry (ModelProto field 14).
func MetadataProp(key, value string) Field {
	return Bytes(14, Message(String(1, key), String(2, value)))
}

// floatTensor is a ValueInfoProto for a [1] float tensor.
func floatTensor(name string) []byte {
	dim := Message(Varint(1, 1))
	shape := Message(Bytes(1, dim))
	tensor := Message(Varint(1, 1), Bytes(2, shape))
	typ := Message(Bytes(1, tensor))

	return Message(String(1, name), Bytes(2, typ))
}

// IdentityModel builds a one-node y = Identity(x) model, opset 13, IR 8,
// followed by the given metadata fields.
func IdentityModel(metadata ...Field) []byte {
	node := Message(String(1, "x"), String(2, "y"), String(4, "Identity"))
	graph := Message(Bytes(1, node), String(2, "identity"), Bytes(11, floatTensor("x")), Bytes(12, floatTensor("y")))
	opset := Message(String(1, ""), Varint(2, 13))

	fields := []Field{
		Varint(1, 8),
		String(2, "piperexport-test"),
		Bytes(7, graph),
		Bytes(8, opset),
	}

	return Message(append(fields, metadata...)...)
}
