// Package sidecar decodes the JSON file a Piper voice export ships next to
// its ONNX model (model.onnx.json).
package sidecar

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/example/piper-export/internal/artifact"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PhonemeIDMapKey is the top-level key holding the phoneme to id mapping.
const PhonemeIDMapKey = "phoneme_id_map"

// ErrNoPhonemeIDMap is returned when the document has no phoneme_id_map.
var ErrNoPhonemeIDMap = errors.New("missing key " + strconv.Quote(PhonemeIDMapKey))

// PhonemeIDs is one entry of the phoneme map.
type PhonemeIDs struct {
	Phoneme string
	IDs     []int
}

// PhonemeIDMap keeps the entries in document order. Object key order is
// significant: it decides the order of equal ids in the token table.
type PhonemeIDMap []PhonemeIDs

// Len returns the number of (phoneme, id) pairs.
func (m PhonemeIDMap) Len() int {
	n := 0
	for _, p := range m {
		n += len(p.IDs)
	}

	return n
}

// Config is the part of the sidecar the token table is built from.
type Config struct {
	PhonemeIDMap PhonemeIDMap
}

// Settings holds the optional synthesis settings of a sidecar. Numeric
// settings keep their literal JSON text; an empty Number means absent.
type Settings struct {
	Audio struct {
		SampleRate stdjson.Number `json:"sample_rate"`
		Quality    string         `json:"quality"`
	} `json:"audio"`
	Espeak struct {
		Voice string `json:"voice"`
	} `json:"espeak"`
	Inference struct {
		NoiseScale  stdjson.Number `json:"noise_scale"`
		LengthScale stdjson.Number `json:"length_scale"`
		NoiseW      stdjson.Number `json:"noise_w"`
	} `json:"inference"`
	Language struct {
		Code        string `json:"code"`
		Family      string `json:"family"`
		Region      string `json:"region"`
		NameNative  string `json:"name_native"`
		NameEnglish string `json:"name_english"`
	} `json:"language"`
	NumSpeakers stdjson.Number `json:"num_speakers"`
	PhonemeType string         `json:"phoneme_type"`
}

// Parse extracts phoneme_id_map from a sidecar document. Other keys are
// ignored. Malformed JSON is a load error, a missing or malformed
// phoneme_id_map a schema error.
func Parse(data []byte) (Config, error) {
	if !wellFormed(data) {
		return Config{}, artifact.LoadError("", errors.New("sidecar is not valid JSON"))
	}

	var top map[string]stdjson.RawMessage

	err := json.Unmarshal(data, &top)
	if err != nil || top == nil {
		return Config{}, artifact.SchemaError("", errors.New("sidecar is not a JSON object"))
	}

	raw, ok := top[PhonemeIDMapKey]
	if !ok {
		return Config{}, artifact.SchemaError("", ErrNoPhonemeIDMap)
	}

	ids, err := parsePhonemeIDMap(raw)
	if err != nil {
		return Config{}, artifact.SchemaError("", err)
	}

	return Config{PhonemeIDMap: ids}, nil
}

// ParseSettings decodes the optional synthesis settings. phoneme_id_map is
// not required here.
func ParseSettings(data []byte) (Settings, error) {
	if !wellFormed(data) {
		return Settings{}, artifact.LoadError("", errors.New("sidecar is not valid JSON"))
	}

	var st Settings

	err := json.Unmarshal(data, &st)
	if err != nil {
		return Settings{}, artifact.SchemaError("", fmt.Errorf("decode sidecar settings: %w", err))
	}

	return st, nil
}

// Load reads the sidecar at path and extracts phoneme_id_map.
func Load(path string) (Config, error) {
	return load(path, Parse)
}

// LoadSettings reads the sidecar at path and decodes its settings.
func LoadSettings(path string) (Settings, error) {
	return load(path, ParseSettings)
}

func load[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T

	data, err := artifact.ReadFile(path)
	if err != nil {
		return zero, err
	}

	v, err := parse(data)
	if err != nil {
		var ae *artifact.Error
		if errors.As(err, &ae) {
			ae.Path = path
		}

		return zero, err
	}

	return v, nil
}

// wellFormed reports whether data holds exactly one JSON value.
func wellFormed(data []byte) bool {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	iter.Skip()
	if iter.Error != nil {
		return false
	}

	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return false
	}

	return iter.Error == nil || errors.Is(iter.Error, io.EOF)
}

func parsePhonemeIDMap(raw []byte) (PhonemeIDMap, error) {
	iter := json.BorrowIterator(raw)
	defer json.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, fmt.Errorf("%s must be an object", PhonemeIDMapKey)
	}

	var (
		out      PhonemeIDMap
		entryErr error
	)

	index := make(map[string]int)

	iter.ReadObjectCB(func(it *jsoniter.Iterator, phoneme string) bool {
		ids, err := readIDs(it, phoneme)
		if err != nil {
			entryErr = err
			return false
		}

		// A repeated key keeps its first position and its last value.
		if i, dup := index[phoneme]; dup {
			out[i].IDs = ids
			return true
		}

		index[phoneme] = len(out)
		out = append(out, PhonemeIDs{Phoneme: phoneme, IDs: ids})

		return true
	})

	if entryErr != nil {
		return nil, entryErr
	}

	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", PhonemeIDMapKey, iter.Error)
	}

	return out, nil
}

func readIDs(it *jsoniter.Iterator, phoneme string) ([]int, error) {
	if it.WhatIsNext() != jsoniter.ArrayValue {
		return nil, fmt.Errorf("phoneme %q: ids must be a list", phoneme)
	}

	ids := []int{}

	var err error

	it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		if it.WhatIsNext() != jsoniter.NumberValue {
			err = fmt.Errorf("phoneme %q: id must be a number", phoneme)
			return false
		}

		lit := it.ReadNumber()

		id, convErr := strconv.Atoi(string(lit))
		if convErr != nil || id < 0 {
			err = fmt.Errorf("phoneme %q: id %s is not a non-negative integer", phoneme, lit)
			return false
		}

		ids = append(ids, id)

		return true
	})

	return ids, err
}
