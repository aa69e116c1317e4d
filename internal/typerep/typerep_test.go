package typerep

import (
	"testing"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{New("acme", "Order"), "acme.Order"},
		{New("acme", "Order").Versioned("2"), "acme.Order@2"},
		{Type{Name: "Order"}, "Order"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"acme.Order", New("acme", "Order"), false},
		{"acme.billing.Order@3", Type{Namespace: "acme.billing", Name: "Order", Version: "3"}, false},
		{"Order", Type{Name: "Order"}, false},
		{"", Type{}, true},
		{"acme.@1", Type{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	v1 := New("acme", "Order").Versioned("1")
	v2 := New("acme", "Order").Versioned("2")
	bare := New("acme", "Order")
	other := New("acme", "Invoice")

	tests := []struct {
		name     string
		query    *Type
		stored   Type
		strategy VersionMatchStrategy
		want     bool
	}{
		{"nil query matches", nil, v1, MatchSpecifiedVersion, true},
		{"any ignores version", &v2, v1, MatchAny, true},
		{"any rejects other name", &other, v1, MatchAny, false},
		{"specified equal", &v1, v1, MatchSpecifiedVersion, true},
		{"specified different", &v2, v1, MatchSpecifiedVersion, false},
		{"unversioned stored bare", &v1, bare, MatchUnversioned, true},
		{"unversioned stored versioned", &bare, v1, MatchUnversioned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.query, Describe(tt.stored), tt.strategy)
			if err != nil {
				t.Fatalf("Matches() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_UnsupportedStrategy(t *testing.T) {
	q := New("acme", "Order")
	_, err := Matches(&q, Describe(q), VersionMatchStrategy(42))
	if !errors.Is(err, errors.ErrUnsupportedValue) {
		t.Errorf("Matches() error = %v, want ErrUnsupportedValue", err)
	}
}

func TestParseVersionMatchStrategy(t *testing.T) {
	for _, s := range []VersionMatchStrategy{MatchAny, MatchSpecifiedVersion, MatchUnversioned} {
		got, err := ParseVersionMatchStrategy(s.String())
		if err != nil || got != s {
			t.Errorf("ParseVersionMatchStrategy(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseVersionMatchStrategy("sideways"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

type sample struct{}

func TestOf(t *testing.T) {
	got := Of(&sample{})
	want := Type{Namespace: "github.com/Iron-Ham/streamledger/internal/typerep", Name: "sample"}
	if got != want {
		t.Errorf("Of(&sample{}) = %+v, want %+v", got, want)
	}
	if got := Of(nil); !got.IsZero() {
		t.Errorf("Of(nil) = %+v, want zero", got)
	}
	if got := Of(map[string]int{}); got.Name != "map[string]int" {
		t.Errorf("Of(map) = %+v", got)
	}
}
