package stream

import (
	"cmp"
	"context"
	"slices"

	"github.com/Iron-Ham/streamledger/internal/handling"
)

// PartitionStats summarizes one partition.
type PartitionStats struct {
	Locator      string
	Records      int
	LastRecordID int64
}

// ConcernStats counts the records of a concern by current status.
type ConcernStats struct {
	Concern  string
	Entries  int
	ByStatus map[handling.Status]int
}

// Stats is a point-in-time summary of a stream.
type Stats struct {
	Representation Representation
	Partitions     []PartitionStats
	Concerns       []ConcernStats
	StreamStatus   handling.Status
	LastEntryID    int64
}

// Stats returns a snapshot of the stream's partitions and ledgers.
func (s *MemoryStream) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	st := Stats{Representation: s.rep}
	concerns := make(map[string]*ConcernStats)

	s.handlingMu.Lock()
	s.partitionMu.Lock()

	for _, loc := range s.knownLocators(true) {
		if p := s.partitions[loc]; p != nil {
			st.Partitions = append(st.Partitions, PartitionStats{
				Locator:      loc.Name,
				Records:      len(p.records),
				LastRecordID: p.lastID,
			})
		}
		for concern, entries := range s.ledgers[loc] {
			cs := concerns[concern]
			if cs == nil {
				cs = &ConcernStats{Concern: concern, ByStatus: make(map[handling.Status]int)}
				concerns[concern] = cs
			}
			cs.Entries += len(entries)
			for _, e := range handling.Latest(entries) {
				cs.ByStatus[e.Metadata.Status]++
			}
		}
	}
	st.StreamStatus = s.streamStatusLocked()
	st.LastEntryID = s.lastEntry

	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	for _, cs := range concerns {
		st.Concerns = append(st.Concerns, *cs)
	}
	slices.SortFunc(st.Concerns, func(a, b ConcernStats) int {
		return cmp.Compare(a.Concern, b.Concern)
	})
	return st, nil
}
