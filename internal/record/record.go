// Package record defines the immutable records held by a stream partition,
// their metadata and tags, and the query vocabulary used to select them.
package record

import (
	"slices"
	"time"

	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// NamedValue is one tag. Tags form an ordered multimap: names may repeat.
type NamedValue struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Tag is shorthand for NamedValue{Name: name, Value: value}.
func Tag(name, value string) NamedValue {
	return NamedValue{Name: name, Value: value}
}

// Metadata describes a record without its payload.
type Metadata struct {
	StringSerializedID string                        `json:"string_serialized_id" yaml:"string_serialized_id"`
	IDType             typerep.WithAndWithoutVersion `json:"id_type" yaml:"id_type"`
	ObjectType         typerep.WithAndWithoutVersion `json:"object_type" yaml:"object_type"`
	Tags               []NamedValue                  `json:"tags,omitempty" yaml:"tags,omitempty"`
	TimestampUTC       time.Time                     `json:"timestamp_utc" yaml:"timestamp_utc"`
	ObjectTimestampUTC *time.Time                    `json:"object_timestamp_utc,omitempty" yaml:"object_timestamp_utc,omitempty"`
}

// NewMetadata builds metadata for an object of objectType identified by id.
func NewMetadata(id string, idType, objectType typerep.Type, tags ...NamedValue) Metadata {
	return Metadata{
		StringSerializedID: id,
		IDType:             typerep.Describe(idType),
		ObjectType:         typerep.Describe(objectType),
		Tags:               tags,
	}
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	m.Tags = slices.Clone(m.Tags)
	if m.ObjectTimestampUTC != nil {
		ts := *m.ObjectTimestampUTC
		m.ObjectTimestampUTC = &ts
	}
	return m
}

// Record is one immutable write into a partition.
type Record struct {
	InternalRecordID int64                `json:"internal_record_id" yaml:"internal_record_id"`
	Metadata         Metadata             `json:"metadata" yaml:"metadata"`
	Payload          serializer.Described `json:"payload" yaml:"payload"`
}

// Clone returns a deep copy of r so callers cannot alias partition storage.
func (r Record) Clone() Record {
	r.Metadata = r.Metadata.Clone()
	r.Payload.Bytes = slices.Clone(r.Payload.Bytes)
	return r
}

// Filter selects records by identifier, types and tags. Nil fields do not filter.
type Filter struct {
	StringSerializedID *string
	IDType             *typerep.Type
	ObjectType         *typerep.Type
	VersionMatch       typerep.VersionMatchStrategy
	Tags               []NamedValue
	TagMatch           TagMatchStrategy
}

// Matches reports whether m passes every filter set on f.
func (f Filter) Matches(m Metadata) (bool, error) {
	if f.StringSerializedID != nil && *f.StringSerializedID != m.StringSerializedID {
		return false, nil
	}
	ok, err := typerep.Matches(f.IDType, m.IDType, f.VersionMatch)
	if err != nil || !ok {
		return false, err
	}
	ok, err = typerep.Matches(f.ObjectType, m.ObjectType, f.VersionMatch)
	if err != nil || !ok {
		return false, err
	}
	return MatchTags(f.Tags, m.Tags, f.TagMatch)
}
