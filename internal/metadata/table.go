// Package metadata rewrites the key/value block embedded in an ONNX voice
// model so an on-device runtime can configure synthesis from it.
package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/piper-export/internal/onnxmeta"
	"github.com/example/piper-export/internal/sidecar"
)

// Entry is one metadata key/value pair.
type Entry = onnxmeta.Entry

// Table is an ordered set of entries. Order is written verbatim.
type Table []Entry

// DefaultTable returns the metadata a single-speaker Vietnamese Piper VITS
// voice needs.
func DefaultTable() Table {
	return Table{
		{Key: "has_espeak", Value: "1"},
		{Key: "n_speakers", Value: "1"},
		{Key: "sample_rate", Value: "22050"},
		{Key: "model_type", Value: "vits"},
		{Key: "comment", Value: "piper"},
		{Key: "language", Value: "Vietnamese"},
		{Key: "voice", Value: "vi"},
		{Key: "noise_scale", Value: "0.667"},
		{Key: "noise_scale_w", Value: "0.8"},
		{Key: "length_scale", Value: "1.0"},
		{Key: "espeak.voice", Value: "vi"},
		{Key: "num_speakers", Value: "1"},
	}
}

// Get returns the value stored for key.
func (t Table) Get(key string) (string, bool) {
	for _, e := range t {
		if e.Key == key {
			return e.Value, true
		}
	}

	return "", false
}

// Set overwrites key in place, or appends it when absent.
func (t Table) Set(key, value string) Table {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = value
			return t
		}
	}

	return append(t, Entry{Key: key, Value: value})
}

// Clone returns an independent copy.
func (t Table) Clone() Table {
	return append(Table(nil), t...)
}

// Validate rejects empty tables, blank keys and repeated keys.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("metadata table is empty")
	}

	seen := make(map[string]struct{}, len(t))
	for i, e := range t {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("metadata entry %d has an empty key", i)
		}

		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("duplicate metadata key %q", e.Key)
		}

		seen[e.Key] = struct{}{}
	}

	return nil
}

// ParseAssignments reads "key=value" strings. The first '=' splits; the
// value may be empty.
func ParseAssignments(raw []string) (Table, error) {
	var t Table

	for _, a := range raw {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata assignment %q (want key=value)", a)
		}

		t = t.Set(key, value)
	}

	return t, nil
}

// Merge applies overrides on top of t, keeping t's order and appending new
// keys at the end.
func (t Table) Merge(overrides Table) Table {
	out := t.Clone()
	for _, e := range overrides {
		out = out.Set(e.Key, e.Value)
	}

	return out
}

// FromSidecar fills base's values from a Piper sidecar where the sidecar
// carries the setting. Keys, and their order, always come from base.
func FromSidecar(cfg sidecar.Settings, base Table) Table {
	derived := map[string]string{
		"sample_rate":   cfg.Audio.SampleRate.String(),
		"noise_scale":   cfg.Inference.NoiseScale.String(),
		"noise_scale_w": cfg.Inference.NoiseW.String(),
		"length_scale":  cfg.Inference.LengthScale.String(),
		"n_speakers":    cfg.NumSpeakers.String(),
		"num_speakers":  cfg.NumSpeakers.String(),
		"language":      cfg.Language.NameEnglish,
		"voice":         cfg.Espeak.Voice,
		"espeak.voice":  cfg.Espeak.Voice,
	}

	if cfg.PhonemeType != "" {
		hasEspeak := "0"
		if cfg.PhonemeType == "espeak" {
			hasEspeak = "1"
		}

		derived["has_espeak"] = hasEspeak
	}

	out := base.Clone()
	for i, e := range out {
		if v := derived[e.Key]; v != "" {
			out[i].Value = v
		}
	}

	return out
}
