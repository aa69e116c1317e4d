package locator

import (
	"fmt"
	"testing"
)

func TestSingleResolver(t *testing.T) {
	r := NewSingleResolver("default")

	if got := r.Resolve("anything"); got != (Locator{Name: "default"}) {
		t.Errorf("Resolve() = %v, want default", got)
	}
	if all := r.All(); len(all) != 1 || all[0].Name != "default" {
		t.Errorf("All() = %v", all)
	}
}

func TestNewHashResolver_Validation(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		count  int
	}{
		{"zero partitions", "p", 0},
		{"negative partitions", "p", -2},
		{"blank prefix", "  ", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHashResolver(tt.prefix, tt.count); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHashResolver_Resolve(t *testing.T) {
	r, err := NewHashResolver("partition", 8)
	if err != nil {
		t.Fatalf("NewHashResolver() error = %v", err)
	}

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("order-%d", i)
			if r.Resolve(id) != r.Resolve(id) {
				t.Fatalf("Resolve(%q) not deterministic", id)
			}
		}
	})

	t.Run("canonicalizes", func(t *testing.T) {
		if r.Resolve("  Order-7 ") != r.Resolve("order-7") {
			t.Error("case and whitespace should not change the locator")
		}
	})

	t.Run("within range and spread", func(t *testing.T) {
		known := make(map[Locator]bool)
		for _, l := range r.All() {
			known[l] = true
		}
		seen := make(map[Locator]bool)
		for i := 0; i < 500; i++ {
			l := r.Resolve(fmt.Sprintf("id-%d", i))
			if !known[l] {
				t.Fatalf("Resolve() produced unknown locator %v", l)
			}
			seen[l] = true
		}
		if len(seen) < 2 {
			t.Errorf("expected ids to spread over partitions, saw %d", len(seen))
		}
	})
}

func TestHashResolver_AllReturnsCopy(t *testing.T) {
	r, _ := NewHashResolver("p", 2)
	all := r.All()
	all[0] = Locator{Name: "mutated"}
	if r.All()[0].Name != "p-0" {
		t.Error("All() must not expose internal slice")
	}
}
