// Package typerep describes the types of identifiers and objects stored in a
// stream as plain values, and compares them under a version-match strategy.
package typerep

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

// Type identifies a type by namespace, name and optional version.
// Two Types are compared structurally.
type Type struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
}

// New returns an unversioned Type.
func New(namespace, name string) Type {
	return Type{Namespace: namespace, Name: name}
}

// Versioned returns a copy of t carrying version.
func (t Type) Versioned(version string) Type {
	t.Version = version
	return t
}

// WithoutVersion returns a copy of t with the version cleared.
func (t Type) WithoutVersion() Type {
	t.Version = ""
	return t
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool {
	return t == Type{}
}

// String renders the type as namespace.Name or namespace.Name@version.
func (t Type) String() string {
	var b strings.Builder
	if t.Namespace != "" {
		b.WriteString(t.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	if t.Version != "" {
		b.WriteByte('@')
		b.WriteString(t.Version)
	}
	return b.String()
}

// Of derives the Type of a Go value from its package path and name.
// Pointers are dereferenced; unnamed types render through reflect.
func Of(v any) Type {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return Type{}
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Name() == "" {
		return Type{Name: rt.String()}
	}
	return Type{Namespace: rt.PkgPath(), Name: rt.Name()}
}

// Parse is the inverse of String.
func Parse(s string) (Type, error) {
	if strings.TrimSpace(s) == "" {
		return Type{}, errors.NewValidationError("type representation is empty")
	}
	var t Type
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		t.Version = s[at+1:]
		s = s[:at]
	}
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		t.Namespace = s[:dot]
		s = s[dot+1:]
	}
	t.Name = s
	if t.Name == "" {
		return Type{}, errors.NewValidationError(fmt.Sprintf("type representation %q has no name", s))
	}
	return t, nil
}

// WithAndWithoutVersion carries both forms of a type so that queries using
// any match strategy can be answered without recomputing.
type WithAndWithoutVersion struct {
	WithVersion    Type `json:"with_version" yaml:"with_version"`
	WithoutVersion Type `json:"without_version" yaml:"without_version"`
}

// Describe builds a WithAndWithoutVersion from t.
func Describe(t Type) WithAndWithoutVersion {
	return WithAndWithoutVersion{WithVersion: t, WithoutVersion: t.WithoutVersion()}
}

// VersionMatchStrategy selects how versions participate in a type comparison.
type VersionMatchStrategy int

const (
	// MatchAny ignores versions; namespace and name must be equal.
	MatchAny VersionMatchStrategy = iota
	// MatchSpecifiedVersion requires the versions to be equal as well.
	MatchSpecifiedVersion
	// MatchUnversioned requires the stored type to carry no version.
	MatchUnversioned
)

// String returns the strategy name.
func (s VersionMatchStrategy) String() string {
	switch s {
	case MatchAny:
		return "Any"
	case MatchSpecifiedVersion:
		return "SpecifiedVersion"
	case MatchUnversioned:
		return "Unversioned"
	default:
		return fmt.Sprintf("VersionMatchStrategy(%d)", int(s))
	}
}

// ParseVersionMatchStrategy converts a name produced by String back into a strategy.
func ParseVersionMatchStrategy(s string) (VersionMatchStrategy, error) {
	switch strings.ToLower(s) {
	case "any", "":
		return MatchAny, nil
	case "specifiedversion", "specified", "exact":
		return MatchSpecifiedVersion, nil
	case "unversioned", "withoutversion":
		return MatchUnversioned, nil
	default:
		return 0, errors.NewUnsupportedError("version match strategy", s)
	}
}

// Matches reports whether stored satisfies query under strategy.
// A nil query matches everything.
func Matches(query *Type, stored WithAndWithoutVersion, strategy VersionMatchStrategy) (bool, error) {
	if query == nil {
		return true, nil
	}
	switch strategy {
	case MatchAny:
		return query.WithoutVersion() == stored.WithoutVersion, nil
	case MatchSpecifiedVersion:
		return *query == stored.WithVersion, nil
	case MatchUnversioned:
		return stored.WithVersion.Version == "" && query.WithoutVersion() == stored.WithoutVersion, nil
	default:
		return false, errors.NewUnsupportedError("version match strategy", strategy.String())
	}
}
