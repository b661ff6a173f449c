// Package onnxmeta reads and rewrites the metadata_props block of a
// serialized ONNX ModelProto without decoding the graph.
//
// Only the top level of the message is walked. Every field other than
// metadata_props is kept as the exact bytes it was read from, so weights and
// graph definitions survive a rewrite untouched.
package onnxmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/example/piper-export/internal/artifact"
	"google.golang.org/protobuf/encoding/protowire"
)

// ModelProto field numbers, from onnx.proto.
const (
	fieldIRVersion       protowire.Number = 1
	fieldProducerName    protowire.Number = 2
	fieldProducerVersion protowire.Number = 3
	fieldDomain          protowire.Number = 4
	fieldModelVersion    protowire.Number = 5
	fieldDocString       protowire.Number = 6
	fieldGraph           protowire.Number = 7
	fieldOpsetImport     protowire.Number = 8
	fieldMetadataProps   protowire.Number = 14
	fieldTrainingInfo    protowire.Number = 20
	fieldFunctions       protowire.Number = 25
	fieldConfiguration   protowire.Number = 26
)

// StringStringEntryProto field numbers.
const (
	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2
)

var knownWireTypes = map[protowire.Number]protowire.Type{
	fieldIRVersion:       protowire.VarintType,
	fieldProducerName:    protowire.BytesType,
	fieldProducerVersion: protowire.BytesType,
	fieldDomain:          protowire.BytesType,
	fieldModelVersion:    protowire.VarintType,
	fieldDocString:       protowire.BytesType,
	fieldGraph:           protowire.BytesType,
	fieldOpsetImport:     protowire.BytesType,
	fieldMetadataProps:   protowire.BytesType,
	fieldTrainingInfo:    protowire.BytesType,
	fieldFunctions:       protowire.BytesType,
	fieldConfiguration:   protowire.BytesType,
}

// ErrNoGraph is returned for well-formed protobuf that carries no graph.
var ErrNoGraph = errors.New("onnxmeta: model has no graph")

// Entry is one metadata_props key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Info holds the scalar header fields of a model.
type Info struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
}

type rawField struct {
	num protowire.Number
	raw []byte
}

// Model is a parsed container. It retains the buffer it was parsed from.
type Model struct {
	Info Info

	fields   []rawField
	metadata []Entry
}

// Parse decodes the top level of a ModelProto.
func Parse(b []byte) (*Model, error) {
	if len(b) == 0 {
		return nil, errors.New("onnxmeta: empty model")
	}

	m := &Model{}
	hasGraph := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("onnxmeta: read tag: %w", protowire.ParseError(n))
		}

		if want, ok := knownWireTypes[num]; ok && typ != want {
			return nil, fmt.Errorf("onnxmeta: field %d has wire type %d, want %d", num, typ, want)
		}

		vn := protowire.ConsumeFieldValue(num, typ, b[n:])
		if vn < 0 {
			return nil, fmt.Errorf("onnxmeta: field %d: %w", num, protowire.ParseError(vn))
		}

		raw, val := b[:n+vn], b[n:n+vn]
		b = b[n+vn:]

		switch num {
		case fieldMetadataProps:
			payload, _ := protowire.ConsumeBytes(val)

			e, err := parseEntry(payload)
			if err != nil {
				return nil, err
			}

			m.metadata = append(m.metadata, e)

			continue
		case fieldGraph:
			hasGraph = true
		case fieldIRVersion:
			v, _ := protowire.ConsumeVarint(val)
			m.Info.IRVersion = int64(v)
		case fieldModelVersion:
			v, _ := protowire.ConsumeVarint(val)
			m.Info.ModelVersion = int64(v)
		case fieldProducerName:
			m.Info.ProducerName, _ = protowire.ConsumeString(val)
		case fieldProducerVersion:
			m.Info.ProducerVersion, _ = protowire.ConsumeString(val)
		case fieldDomain:
			m.Info.Domain, _ = protowire.ConsumeString(val)
		}

		m.fields = append(m.fields, rawField{num: num, raw: raw})
	}

	if !hasGraph {
		return nil, ErrNoGraph
	}

	return m, nil
}

func parseEntry(b []byte) (Entry, error) {
	var e Entry

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Entry{}, fmt.Errorf("onnxmeta: metadata entry tag: %w", protowire.ParseError(n))
		}

		b = b[n:]

		if (num == entryKey || num == entryValue) && typ != protowire.BytesType {
			return Entry{}, fmt.Errorf("onnxmeta: metadata entry field %d has wire type %d", num, typ)
		}

		if num == entryKey || num == entryValue {
			s, sn := protowire.ConsumeString(b)
			if sn < 0 {
				return Entry{}, fmt.Errorf("onnxmeta: metadata entry field %d: %w", num, protowire.ParseError(sn))
			}

			if num == entryKey {
				e.Key = s
			} else {
				e.Value = s
			}

			b = b[sn:]

			continue
		}

		vn := protowire.ConsumeFieldValue(num, typ, b)
		if vn < 0 {
			return Entry{}, fmt.Errorf("onnxmeta: metadata entry field %d: %w", num, protowire.ParseError(vn))
		}

		b = b[vn:]
	}

	return e, nil
}

// Metadata returns a copy of the metadata entries in file order.
func (m *Model) Metadata() []Entry {
	return append([]Entry(nil), m.metadata...)
}

// SetMetadata replaces the whole metadata sequence.
func (m *Model) SetMetadata(entries []Entry) {
	m.metadata = append([]Entry(nil), entries...)
}

// WriteTo serializes the model. Metadata entries are placed ahead of the
// first field numbered above metadata_props, matching the field order the
// reference protobuf serializers produce.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	var total int64

	write := func(b []byte) error {
		n, err := w.Write(b)
		total += int64(n)

		return err
	}

	placed := false

	for _, f := range m.fields {
		if !placed && f.num > fieldMetadataProps {
			if err := write(m.appendMetadata(nil)); err != nil {
				return total, err
			}

			placed = true
		}

		if err := write(f.raw); err != nil {
			return total, err
		}
	}

	if !placed {
		if err := write(m.appendMetadata(nil)); err != nil {
			return total, err
		}
	}

	return total, nil
}

// Marshal returns the serialized model.
func (m *Model) Marshal() []byte {
	var buf bytes.Buffer

	buf.Grow(m.size())
	_, _ = m.WriteTo(&buf)

	return buf.Bytes()
}

func (m *Model) appendMetadata(b []byte) []byte {
	for _, e := range m.metadata {
		b = protowire.AppendTag(b, fieldMetadataProps, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(entrySize(e)))
		b = protowire.AppendTag(b, entryKey, protowire.BytesType)
		b = protowire.AppendString(b, e.Key)
		b = protowire.AppendTag(b, entryValue, protowire.BytesType)
		b = protowire.AppendString(b, e.Value)
	}

	return b
}

func entrySize(e Entry) int {
	return protowire.SizeTag(entryKey) + protowire.SizeBytes(len(e.Key)) +
		protowire.SizeTag(entryValue) + protowire.SizeBytes(len(e.Value))
}

func (m *Model) size() int {
	n := 0
	for _, f := range m.fields {
		n += len(f.raw)
	}

	for _, e := range m.metadata {
		n += protowire.SizeTag(fieldMetadataProps) + protowire.SizeBytes(entrySize(e))
	}

	return n
}

// Load reads and parses the container at path. Any failure is a load error.
func Load(path string) (*Model, error) {
	data, err := artifact.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, artifact.LoadError(path, err)
	}

	return m, nil
}

// Save writes the model to path, replacing any existing file.
func (m *Model) Save(path string, atomic bool) error {
	return artifact.WriteFile(path, atomic, func(w io.Writer) error {
		_, err := m.WriteTo(w)
		return err
	})
}
