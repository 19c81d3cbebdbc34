package server

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/msuslov84/Chat/pkg/protocol"
)

// Peer is a connection the registry can deliver frames to. Send must be
// safe for concurrent use and keep frames to one peer in call order.
type Peer interface {
	ID() string
	Send(msg *protocol.Message) error
}

// Result is the outcome of a registration attempt.
type Result int

const (
	Accepted          Result = iota // name claimed
	RejectedTaken                   // another session holds the name
	RejectedInvalid                 // name cannot be carried in a roster frame
	AlreadyRegistered               // session already owns a name
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedTaken:
		return "rejected_taken"
	case RejectedInvalid:
		return "rejected_invalid"
	case AlreadyRegistered:
		return "already_registered"
	default:
		return "unknown"
	}
}

// member is a peer's registry entry. registered=false is the unregistered
// sentinel, so no name string can be mistaken for it.
type member struct {
	name       string
	registered bool
}

// Registry tracks live sessions, the names they registered, and the roster
// in join order. It owns broadcast fan-out.
type Registry struct {
	mu      sync.RWMutex
	members map[Peer]*member
	roster  []string // registered names in join order

	metrics *Metrics
	journal MembershipJournal
}

// NewRegistry creates an empty registry. metrics and journal may be nil.
func NewRegistry(metrics *Metrics, journal MembershipJournal) *Registry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		members: make(map[Peer]*member),
		metrics: metrics,
		journal: journal,
	}
}

// ValidName reports whether name can be registered. Names are compared
// exactly; they must be non-empty and must not contain the roster separator.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, protocol.RosterSeparator)
}

// Add tracks a newly accepted peer as unregistered.
func (r *Registry) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[p]; !ok {
		r.members[p] = &member{}
	}
}

// TryRegister claims name for p. On Accepted the caller announces the join;
// on any rejection nothing changed and nothing was sent.
func (r *Registry) TryRegister(p Peer, name string) Result {
	if !ValidName(name) {
		r.metrics.NameConflicts.Add(1)
		return RejectedInvalid
	}

	r.mu.Lock()
	m, ok := r.members[p]
	if !ok {
		m = &member{}
		r.members[p] = m
	}
	switch {
	case m.registered:
		r.mu.Unlock()
		return AlreadyRegistered
	case slices.Contains(r.roster, name):
		r.mu.Unlock()
		r.metrics.NameConflicts.Add(1)
		return RejectedTaken
	}
	m.name = name
	m.registered = true
	r.roster = append(r.roster, name)
	r.mu.Unlock()

	r.metrics.Registrations.Add(1)
	if r.journal != nil {
		if err := r.journal.Joined(name); err != nil {
			slog.Error("journal join failed", "user", name, "err", err)
		}
	}
	return Accepted
}

// Remove forgets p. If p had registered, its name leaves the roster and the
// remaining peers get a parting banner followed by a fresh roster.
func (r *Registry) Remove(p Peer) (name string, registered bool) {
	r.mu.Lock()
	m, ok := r.members[p]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.members, p)
	if m.registered {
		if i := slices.Index(r.roster, m.name); i >= 0 {
			r.roster = slices.Delete(r.roster, i, i+1)
		}
	}
	r.mu.Unlock()

	if !m.registered {
		return "", false
	}
	if r.journal != nil {
		if err := r.journal.Parted(m.name); err != nil {
			slog.Error("journal part failed", "user", m.name, "err", err)
		}
	}
	r.Announce(protocol.Parting(m.name))
	return m.name, true
}

// Announce sends msg and then a roster snapshot to every tracked peer.
func (r *Registry) Announce(msg *protocol.Message) {
	peers, roster := r.snapshot()
	r.fanOut(peers, msg, protocol.Roster(roster))
}

// BroadcastText relays a chat message unmodified to every tracked peer,
// registered or not.
func (r *Registry) BroadcastText(msg *protocol.Message) {
	peers, _ := r.snapshot()
	r.fanOut(peers, msg)
}

// fanOut is best effort: a failed send to one peer is logged and counted,
// and delivery to the other peers carries on.
func (r *Registry) fanOut(peers []Peer, frames ...*protocol.Message) {
	for _, p := range peers {
		for _, f := range frames {
			if err := p.Send(f); err != nil {
				r.metrics.SendFailures.Add(1)
				slog.Warn("broadcast write failed", "session", p.ID(), "type", f.Type, "err", err)
				break
			}
		}
	}
}

func (r *Registry) snapshot() ([]Peer, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]Peer, 0, len(r.members))
	for p := range r.members {
		peers = append(peers, p)
	}
	return peers, slices.Clone(r.roster)
}

// Roster returns the registered names in join order.
func (r *Registry) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.roster))
	copy(out, r.roster)
	return out
}

// Count returns the number of tracked peers, registered or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// NameOf returns the name p registered, if any.
func (r *Registry) NameOf(p Peer) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[p]
	if !ok || !m.registered {
		return "", false
	}
	return m.name, true
}
