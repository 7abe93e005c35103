package decision

import (
	"time"

	"github.com/open-horizon-labs/superego/internal/session"
)

// ReadAllSessions merges the unscoped journal at root with the journal of
// every session namespace under it, oldest first.
func ReadAllSessions(root string) ([]Decision, error) {
	all, err := NewJournal(root).ReadAll()
	if err != nil {
		return nil, err
	}

	ids, err := session.List(root)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ds, err := NewJournal(session.Dir(root, id)).ReadAll()
		if err != nil {
			return nil, err
		}
		all = append(all, ds...)
	}

	sortByTime(all)
	return all, nil
}

// Stats summarises a journal listing.
type Stats struct {
	Total    int
	First    time.Time
	Last     time.Time
	Sessions int
	ByType   map[Type]int
}

// Summarize computes Stats over decisions sorted oldest first.
func Summarize(decisions []Decision) Stats {
	s := Stats{Total: len(decisions), ByType: make(map[Type]int)}
	if len(decisions) == 0 {
		return s
	}
	s.First = decisions[0].Timestamp
	s.Last = decisions[len(decisions)-1].Timestamp

	seen := make(map[string]bool)
	for _, d := range decisions {
		s.ByType[d.Type]++
		if id := d.Session(); id != "" {
			seen[id] = true
		}
	}
	s.Sessions = len(seen)
	return s
}
