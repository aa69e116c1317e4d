// Package serializer turns payloads into described serializations and back.
//
// A stream never interprets payload bytes. It stores a [Described] value that
// records which serializer produced the payload, in which format, and the
// type of the original object, so any reader holding a [Factory] can decode
// it again.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// Kind names a serializer implementation.
type Kind string

// Supported serializer kinds.
const (
	KindJSON Kind = "json"
	KindYAML Kind = "yaml"
)

// Format selects whether the serialized payload is kept as text or bytes.
type Format string

// Supported formats.
const (
	FormatString Format = "string"
	FormatBinary Format = "binary"
)

// Representation identifies the serializer used for a payload.
type Representation struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Format Format `json:"format" yaml:"format"`
}

// DefaultRepresentation is JSON kept as a string.
var DefaultRepresentation = Representation{Kind: KindJSON, Format: FormatString}

// String renders the representation as kind/format.
func (r Representation) String() string {
	return string(r.Kind) + "/" + string(r.Format)
}

// ParseRepresentation parses kind and format names, case-insensitively.
func ParseRepresentation(kind, format string) (Representation, error) {
	r := Representation{Kind: Kind(strings.ToLower(kind)), Format: Format(strings.ToLower(format))}
	switch r.Kind {
	case KindJSON, KindYAML:
	default:
		return Representation{}, errors.NewUnsupportedError("serializer kind", kind)
	}
	switch r.Format {
	case FormatString, FormatBinary:
	default:
		return Representation{}, errors.NewUnsupportedError("serialization format", format)
	}
	return r, nil
}

// Described is a serialized payload plus everything needed to decode it.
type Described struct {
	PayloadType    typerep.WithAndWithoutVersion `json:"payload_type" yaml:"payload_type"`
	Representation Representation                `json:"representation" yaml:"representation"`
	String         string                        `json:"string,omitempty" yaml:"string,omitempty"`
	Bytes          []byte                        `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// Equal reports whether two described payloads carry the same content.
// The payload type and serializer must match as well as the serialized form.
func (d Described) Equal(o Described) bool {
	return d.PayloadType == o.PayloadType &&
		d.Representation == o.Representation &&
		d.String == o.String &&
		bytes.Equal(d.Bytes, o.Bytes)
}

// Size returns the length of the serialized payload.
func (d Described) Size() int {
	if d.Representation.Format == FormatBinary {
		return len(d.Bytes)
	}
	return len(d.String)
}

// Serializer encodes and decodes Go values.
type Serializer interface {
	Kind() Kind
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer uses encoding/json.
type JSONSerializer struct{}

// Kind implements Serializer.
func (JSONSerializer) Kind() Kind { return KindJSON }

// Marshal implements Serializer.
func (JSONSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Serializer.
func (JSONSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// YAMLSerializer uses gopkg.in/yaml.v3.
type YAMLSerializer struct{}

// Kind implements Serializer.
func (YAMLSerializer) Kind() Kind { return KindYAML }

// Marshal implements Serializer.
func (YAMLSerializer) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

// Unmarshal implements Serializer.
func (YAMLSerializer) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// Factory resolves serializers by kind. It is safe for concurrent use.
type Factory struct {
	mu          sync.RWMutex
	serializers map[Kind]Serializer
}

// NewFactory returns a Factory with the JSON and YAML serializers registered.
func NewFactory() *Factory {
	f := &Factory{serializers: make(map[Kind]Serializer)}
	f.Register(JSONSerializer{})
	f.Register(YAMLSerializer{})
	return f
}

// Register adds or replaces the serializer for s.Kind().
func (f *Factory) Register(s Serializer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serializers[s.Kind()] = s
}

// Get returns the serializer registered for kind.
func (f *Factory) Get(kind Kind) (Serializer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.serializers[kind]
	if !ok {
		return nil, errors.NewUnsupportedError("serializer kind", string(kind))
	}
	return s, nil
}

// Describe serializes v with the serializer named by rep. If payloadType is
// the zero Type it is derived from v.
func (f *Factory) Describe(rep Representation, payloadType typerep.Type, v any) (Described, error) {
	s, err := f.Get(rep.Kind)
	if err != nil {
		return Described{}, err
	}
	if payloadType.IsZero() {
		payloadType = typerep.Of(v)
	}
	data, err := s.Marshal(v)
	if err != nil {
		return Described{}, errors.Wrapf(err, "serialize %s as %s", payloadType, rep)
	}

	d := Described{PayloadType: typerep.Describe(payloadType), Representation: rep}
	switch rep.Format {
	case FormatString:
		d.String = string(data)
	case FormatBinary:
		d.Bytes = data
	default:
		return Described{}, errors.NewUnsupportedError("serialization format", string(rep.Format))
	}
	return d, nil
}

// Decode deserializes d into v, which must be a pointer.
func (f *Factory) Decode(d Described, v any) error {
	s, err := f.Get(d.Representation.Kind)
	if err != nil {
		return err
	}
	data := d.Bytes
	if d.Representation.Format != FormatBinary {
		data = []byte(d.String)
	}
	if err := s.Unmarshal(data, v); err != nil {
		return fmt.Errorf("deserialize %s: %w", d.PayloadType.WithVersion, err)
	}
	return nil
}
