package handling

import "strings"

// Composite summarizes the statuses of a set of records as a bit set with
// one bit per Status.
type Composite uint32

// Reduce folds individual statuses into a Composite.
func Reduce(statuses []Status) Composite {
	var c Composite
	for _, s := range statuses {
		c |= 1 << uint(s)
	}
	return c
}

// Has reports whether any record had status s.
func (c Composite) Has(s Status) bool {
	return c&(1<<uint(s)) != 0
}

// IsEmpty reports whether no statuses were reduced.
func (c Composite) IsEmpty() bool { return c == 0 }

// IsMixed reports whether more than one distinct status was seen.
func (c Composite) IsMixed() bool {
	return c != 0 && c&(c-1) != 0
}

// AllCompleted reports whether every record is Completed.
func (c Composite) AllCompleted() bool {
	return c == 1<<uint(Completed)
}

// AnyFailed reports whether at least one record is Failed.
func (c Composite) AnyFailed() bool { return c.Has(Failed) }

// AnyRunning reports whether at least one record is Running.
func (c Composite) AnyRunning() bool { return c.Has(Running) }

// AnyAvailable reports whether at least one record can be claimed.
func (c Composite) AnyAvailable() bool {
	for _, s := range AvailableStatuses() {
		if c.Has(s) {
			return true
		}
	}
	return false
}

// Statuses lists the statuses present, in declaration order.
func (c Composite) Statuses() []Status {
	var out []Status
	for _, s := range AllStatuses() {
		if c.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (c Composite) String() string {
	if c == 0 {
		return "None"
	}
	return strings.Join(Names(c.Statuses()), "|")
}
