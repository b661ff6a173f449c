package metadata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/piper-export/internal/artifact"
	"github.com/example/piper-export/internal/onnxmeta"
	"github.com/example/piper-export/internal/sidecar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// writeModel writes a minimal ModelProto: ir_version, a graph and the given
// metadata entries.
func writeModel(t *testing.T, dir string, entries ...Entry) string {
	t.Helper()

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 8)
	b = protowire.AppendTag(b, 7, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x0a, 0x01, 'g'})

	for _, e := range entries {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, e.Key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, e.Value)
		b = protowire.AppendTag(b, 14, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	return path
}

func TestDefaultTable(t *testing.T) {
	tbl := DefaultTable()

	require.NoError(t, tbl.Validate())
	require.Len(t, tbl, 12)

	keys := make([]string, len(tbl))
	for i, e := range tbl {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{
		"has_espeak", "n_speakers", "sample_rate", "model_type", "comment", "language",
		"voice", "noise_scale", "noise_scale_w", "length_scale", "espeak.voice", "num_speakers",
	}, keys)

	v, ok := tbl.Get("sample_rate")
	assert.True(t, ok)
	assert.Equal(t, "22050", v)
}

func TestTableValidate(t *testing.T) {
	assert.Error(t, Table{}.Validate())
	assert.Error(t, Table{{Key: " ", Value: "x"}}.Validate())
	assert.Error(t, Table{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}}.Validate())
	assert.NoError(t, Table{{Key: "a", Value: ""}}.Validate())
}

func TestParseAssignments(t *testing.T) {
	tbl, err := ParseAssignments([]string{"voice=en", "comment=a=b", "empty=", "voice=de"})
	require.NoError(t, err)
	assert.Equal(t, Table{{"voice", "de"}, {"comment", "a=b"}, {"empty", ""}}, tbl)

	for _, bad := range []string{"novalue", "=x", " =x"} {
		_, err := ParseAssignments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestMerge(t *testing.T) {
	base := DefaultTable()
	merged := base.Merge(Table{{"voice", "en"}, {"speaker_id", "3"}})

	v, _ := merged.Get("voice")
	assert.Equal(t, "en", v)
	assert.Equal(t, Entry{Key: "speaker_id", Value: "3"}, merged[len(merged)-1])
	assert.Len(t, merged, 13)

	orig, _ := base.Get("voice")
	assert.Equal(t, "vi", orig, "merge must not touch the base table")
}

func TestFromSidecar(t *testing.T) {
	cfg, err := sidecar.ParseSettings([]byte(`{
		"audio": {"sample_rate": 16000},
		"espeak": {"voice": "en-us"},
		"inference": {"noise_scale": 0.5, "length_scale": 1.2, "noise_w": 0.9},
		"language": {"name_english": "English"},
		"num_speakers": 4,
		"phoneme_type": "espeak",
		"phoneme_id_map": {"a": [1]}
	}`))
	require.NoError(t, err)

	got := FromSidecar(cfg, DefaultTable())
	assert.Equal(t, Table{
		{"has_espeak", "1"},
		{"n_speakers", "4"},
		{"sample_rate", "16000"},
		{"model_type", "vits"},
		{"comment", "piper"},
		{"language", "English"},
		{"voice", "en-us"},
		{"noise_scale", "0.5"},
		{"noise_scale_w", "0.9"},
		{"length_scale", "1.2"},
		{"espeak.voice", "en-us"},
		{"num_speakers", "4"},
	}, got)
}

func TestFromSidecar_AbsentSettingsKeepBase(t *testing.T) {
	cfg, err := sidecar.ParseSettings([]byte(`{"phoneme_type": "text", "phoneme_id_map": {}}`))
	require.NoError(t, err)

	got := FromSidecar(cfg, DefaultTable())

	want := DefaultTable().Set("has_espeak", "0")
	assert.Equal(t, want, got)
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	in := writeModel(t, dir, Entry{"voice", "en"}, Entry{"legacy", "x"})
	out := filepath.Join(dir, "model_fixed.onnx")

	res, err := Rewrite(RewriteOptions{InPath: in, OutPath: out, Table: DefaultTable(), Atomic: true})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"voice", "en"}, {"legacy", "x"}}, res.Previous)

	m, err := onnxmeta.Load(out)
	require.NoError(t, err)

	written := m.Metadata()
	assert.Equal(t, []Entry(DefaultTable()), written)

	voices := 0
	seen := map[string]bool{}
	for _, e := range written {
		assert.False(t, seen[e.Key], "duplicate key %q", e.Key)
		seen[e.Key] = true
		if e.Key == "voice" {
			voices++
			assert.Equal(t, "vi", e.Value)
		}
	}
	assert.Equal(t, 1, voices)
	assert.False(t, seen["legacy"])

	orig, err := onnxmeta.Load(in)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"voice", "en"}, {"legacy", "x"}}, orig.Metadata(), "input must be untouched")
}

func TestRewrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	in := writeModel(t, dir, Entry{"voice", "en"})
	out1 := filepath.Join(dir, "a.onnx")
	out2 := filepath.Join(dir, "b.onnx")

	_, err := Rewrite(RewriteOptions{InPath: in, OutPath: out1, Table: DefaultTable()})
	require.NoError(t, err)
	_, err = Rewrite(RewriteOptions{InPath: in, OutPath: out2, Table: DefaultTable()})
	require.NoError(t, err)

	a, err := os.ReadFile(out1)
	require.NoError(t, err)
	b, err := os.ReadFile(out2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRewrite_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeModel(t, dir)

	_, err := Rewrite(RewriteOptions{InPath: filepath.Join(dir, "missing.onnx"), OutPath: filepath.Join(dir, "o.onnx"), Table: DefaultTable()})
	assert.ErrorIs(t, err, artifact.ErrLoad)

	_, err = Rewrite(RewriteOptions{InPath: in, OutPath: filepath.Join(dir, "nodir", "o.onnx"), Table: DefaultTable()})
	assert.ErrorIs(t, err, artifact.ErrWrite)

	_, err = Rewrite(RewriteOptions{InPath: in, OutPath: in, Table: DefaultTable()})
	assert.ErrorIs(t, err, ErrSamePath)

	_, err = Rewrite(RewriteOptions{InPath: in, OutPath: filepath.Join(dir, "o.onnx"), Table: Table{{"a", "1"}, {"a", "2"}}})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintResult(&buf, Result{Written: DefaultTable()}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 15)
	assert.Equal(t, "Model saved with complete metadata!", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "Metadata added:", lines[2])
	assert.Equal(t, "  has_espeak=1", lines[3])
	assert.Equal(t, "  espeak.voice=vi", lines[13])
	assert.Equal(t, "  num_speakers=1", lines[14])
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	in := writeModel(t, dir, Entry{"voice", "en"})

	var buf bytes.Buffer
	require.NoError(t, Show(&buf, in))

	assert.Equal(t, "model: "+in+"\nir_version: 8\nproducer:  \nmetadata (1 entries):\n  voice=en\n", buf.String())

	err := Show(&buf, filepath.Join(dir, "missing.onnx"))
	assert.ErrorIs(t, err, artifact.ErrLoad)
}
