// Package locator maps record identifiers to the partitions that store them.
package locator

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

// Locator is an opaque, comparable partition key.
type Locator struct {
	Name string `json:"name" yaml:"name"`
}

// String returns the locator name.
func (l Locator) String() string { return l.Name }

// Resolver assigns identifiers to locators.
type Resolver interface {
	// Resolve returns the locator owning id.
	Resolve(id string) Locator
	// All returns every locator the resolver can produce, in a stable order.
	All() []Locator
}

// SingleResolver places every identifier in one partition.
type SingleResolver struct {
	locator Locator
}

// NewSingleResolver returns a resolver that always yields a locator named name.
func NewSingleResolver(name string) *SingleResolver {
	return &SingleResolver{locator: Locator{Name: name}}
}

// Resolve implements Resolver.
func (r *SingleResolver) Resolve(string) Locator { return r.locator }

// All implements Resolver.
func (r *SingleResolver) All() []Locator { return []Locator{r.locator} }

// HashResolver spreads identifiers across a fixed number of partitions using
// FNV-1a over the canonicalized identifier.
type HashResolver struct {
	locators []Locator
}

// NewHashResolver returns a resolver over count partitions named prefix-0..prefix-(count-1).
func NewHashResolver(prefix string, count int) (*HashResolver, error) {
	if count < 1 {
		return nil, errors.NewValidationError("partition count must be at least 1").
			WithField("count").WithValue(count)
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.NewValidationError("locator prefix is required").WithField("prefix")
	}
	locators := make([]Locator, count)
	for i := range locators {
		locators[i] = Locator{Name: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return &HashResolver{locators: locators}, nil
}

// Resolve implements Resolver.
func (r *HashResolver) Resolve(id string) Locator {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalize(id)))
	return r.locators[h.Sum64()%uint64(len(r.locators))]
}

// All implements Resolver.
func (r *HashResolver) All() []Locator {
	out := make([]Locator, len(r.locators))
	copy(out, r.locators)
	return out
}

// canonicalize normalizes an identifier so that ids differing only in case or
// surrounding whitespace land in the same partition.
func canonicalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
