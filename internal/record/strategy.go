package record

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

// enumName and parseEnum back the String and Parse functions of the
// strategy enums below.
func enumName[T ~int](names []string, v T, kind string) string {
	if int(v) >= 0 && int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", kind, int(v))
}

func parseEnum[T ~int](names []string, s, kind string) (T, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return T(i), nil
		}
	}
	return 0, errors.NewUnsupportedError(kind, s)
}

// TagMatchStrategy decides how query tags are compared with record tags.
type TagMatchStrategy int

const (
	// RecordContainsAllQueryTags requires every query tag on the record.
	RecordContainsAllQueryTags TagMatchStrategy = iota
	// RecordContainsAnyQueryTag requires at least one query tag on the record.
	RecordContainsAnyQueryTag
	// RecordContainsExactlyQueryTags requires the same tags in any order.
	RecordContainsExactlyQueryTags
	// TagMatchGlob treats query values as glob patterns; every query tag
	// needs a record tag of the same name whose value matches.
	TagMatchGlob
)

var tagMatchNames = []string{
	"RecordContainsAllQueryTags",
	"RecordContainsAnyQueryTag",
	"RecordContainsExactlyQueryTags",
	"Glob",
}

func (s TagMatchStrategy) String() string {
	return enumName(tagMatchNames, s, "TagMatchStrategy")
}

// ParseTagMatchStrategy parses a strategy name, case-insensitively.
func ParseTagMatchStrategy(s string) (TagMatchStrategy, error) {
	return parseEnum[TagMatchStrategy](tagMatchNames, s, "tag match strategy")
}

// MatchTags reports whether recordTags satisfy query under strategy.
// An empty query matches every record.
func MatchTags(query, recordTags []NamedValue, strategy TagMatchStrategy) (bool, error) {
	if len(query) == 0 {
		return true, nil
	}
	switch strategy {
	case RecordContainsAllQueryTags:
		for _, q := range query {
			if !slices.Contains(recordTags, q) {
				return false, nil
			}
		}
		return true, nil
	case RecordContainsAnyQueryTag:
		for _, q := range query {
			if slices.Contains(recordTags, q) {
				return true, nil
			}
		}
		return false, nil
	case RecordContainsExactlyQueryTags:
		if len(query) != len(recordTags) {
			return false, nil
		}
		counts := make(map[NamedValue]int, len(query))
		for _, q := range query {
			counts[q]++
		}
		for _, r := range recordTags {
			counts[r]--
			if counts[r] < 0 {
				return false, nil
			}
		}
		return true, nil
	case TagMatchGlob:
		for _, q := range query {
			g, err := glob.Compile(q.Value)
			if err != nil {
				return false, errors.NewValidationError("invalid tag glob").
					WithField(q.Name).WithValue(q.Value).WithCause(err)
			}
			found := slices.ContainsFunc(recordTags, func(r NamedValue) bool {
				return r.Name == q.Name && g.Match(r.Value)
			})
			if !found {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, errors.NewUnsupportedError("tag match strategy", strategy.String())
	}
}

// OrderBy orders records by internal record id.
type OrderBy int

const (
	OrderAscending OrderBy = iota
	OrderDescending
	OrderRandom
)

var orderNames = []string{"Ascending", "Descending", "Random"}

func (o OrderBy) String() string { return enumName(orderNames, o, "OrderBy") }

// ParseOrderBy parses an order name, case-insensitively.
func ParseOrderBy(s string) (OrderBy, error) {
	return parseEnum[OrderBy](orderNames, s, "order strategy")
}

// Order sorts items in place by the id returned from idOf.
func Order[T any](items []T, idOf func(T) int64, by OrderBy) error {
	switch by {
	case OrderAscending:
		slices.SortFunc(items, func(a, b T) int { return cmp.Compare(idOf(a), idOf(b)) })
	case OrderDescending:
		slices.SortFunc(items, func(a, b T) int { return cmp.Compare(idOf(b), idOf(a)) })
	case OrderRandom:
		rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	default:
		return errors.NewUnsupportedError("order strategy", by.String())
	}
	return nil
}

// NotFoundStrategy decides what a read returns when nothing matches.
type NotFoundStrategy int

const (
	// ReturnDefault yields a nil or empty result.
	ReturnDefault NotFoundStrategy = iota
	// Throw yields a not-found error.
	Throw
)

var notFoundNames = []string{"ReturnDefault", "Throw"}

func (s NotFoundStrategy) String() string { return enumName(notFoundNames, s, "NotFoundStrategy") }

// ExistingRecordStrategy decides what Put does when matching records exist.
type ExistingRecordStrategy int

const (
	None ExistingRecordStrategy = iota
	ThrowIfFoundByID
	ThrowIfFoundByIDAndType
	ThrowIfFoundByIDAndTypeAndContent
	DoNotWriteIfFoundByID
	DoNotWriteIfFoundByIDAndType
	DoNotWriteIfFoundByIDAndTypeAndContent
	PruneIfFoundByID
	PruneIfFoundByIDAndType
)

var existingRecordNames = []string{
	"None",
	"ThrowIfFoundByID",
	"ThrowIfFoundByIDAndType",
	"ThrowIfFoundByIDAndTypeAndContent",
	"DoNotWriteIfFoundByID",
	"DoNotWriteIfFoundByIDAndType",
	"DoNotWriteIfFoundByIDAndTypeAndContent",
	"PruneIfFoundByID",
	"PruneIfFoundByIDAndType",
}

func (s ExistingRecordStrategy) String() string {
	return enumName(existingRecordNames, s, "ExistingRecordStrategy")
}

// ParseExistingRecordStrategy parses a strategy name, case-insensitively.
func ParseExistingRecordStrategy(s string) (ExistingRecordStrategy, error) {
	return parseEnum[ExistingRecordStrategy](existingRecordNames, s, "existing record strategy")
}

// IsPrune reports whether s retains a bounded number of matches.
func (s ExistingRecordStrategy) IsPrune() bool {
	return s == PruneIfFoundByID || s == PruneIfFoundByIDAndType
}
