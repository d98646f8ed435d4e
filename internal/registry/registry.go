// Package registry tracks peers reported by the server and turns each fresh report
// into the minimal set of add, update and remove events.
package registry

import (
	"sort"

	"github.com/rbright/streamctl/internal/protocol"
)

// Peer is one tracked peer, keyed by address.
type Peer struct {
	Address           string `json:"address"`
	DisplayName       string `json:"display_name"`
	RefreshRateHz     int    `json:"refresh_rate_hz"`
	VersionCompatible bool   `json:"version_compatible"`
}

// EventKind names the change applied to a peer during reconciliation.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event is one change produced by Reconcile. Removed events carry the record as it
// was before removal.
type Event struct {
	Kind EventKind `json:"kind"`
	Peer Peer      `json:"peer"`
}

type entry struct {
	peer  Peer
	seq   uint64
	stale bool
}

// Registry is not safe for concurrent use; callers serialize Reconcile.
type Registry struct {
	entries map[string]*entry
	nextSeq uint64
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Reconcile applies a complete report using mark-and-sweep.
//
// Added and Updated events follow report order. Removed events come last, ordered
// by the removed records' insertion order. An address reported more than once keeps
// its first position and its last values.
func (r *Registry) Reconcile(reports []protocol.PeerReport) []Event {
	for _, e := range r.entries {
		e.stale = true
	}

	var events []Event
	for _, report := range collapse(reports) {
		next := Peer{
			Address:           report.Address,
			DisplayName:       report.DisplayName,
			RefreshRateHz:     report.RefreshRateHz,
			VersionCompatible: report.VersionCompatible,
		}

		if e, ok := r.entries[report.Address]; ok {
			e.stale = false
			if e.peer != next {
				e.peer = next
				events = append(events, Event{Kind: EventUpdated, Peer: next})
			}
			continue
		}

		r.entries[report.Address] = &entry{peer: next, seq: r.nextSeq}
		r.nextSeq++
		events = append(events, Event{Kind: EventAdded, Peer: next})
	}

	var removed []*entry
	for address, e := range r.entries {
		if e.stale {
			removed = append(removed, e)
			delete(r.entries, address)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].seq < removed[j].seq })
	for _, e := range removed {
		events = append(events, Event{Kind: EventRemoved, Peer: e.peer})
	}

	return events
}

func collapse(reports []protocol.PeerReport) []protocol.PeerReport {
	out := make([]protocol.PeerReport, 0, len(reports))
	index := make(map[string]int, len(reports))
	for _, report := range reports {
		if i, ok := index[report.Address]; ok {
			out[i] = report
			continue
		}
		index[report.Address] = len(out)
		out = append(out, report)
	}
	return out
}

// Peers returns the tracked records in insertion order.
func (r *Registry) Peers() []Peer {
	ordered := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	peers := make([]Peer, len(ordered))
	for i, e := range ordered {
		peers[i] = e.peer
	}
	return peers
}

func (r *Registry) Lookup(address string) (Peer, bool) {
	e, ok := r.entries[address]
	if !ok {
		return Peer{}, false
	}
	return e.peer, true
}

func (r *Registry) Len() int {
	return len(r.entries)
}
