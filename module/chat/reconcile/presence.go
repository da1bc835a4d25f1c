package reconcile

import "sort"

// PresenceSet mirrors the server's online set: a snapshot on join, deltas after.
type PresenceSet struct {
	online map[string]struct{}
}

func NewPresenceSet() *PresenceSet {
	return &PresenceSet{online: make(map[string]struct{})}
}

// Snapshot replaces the set.
func (p *PresenceSet) Snapshot(users []string) {
	p.online = make(map[string]struct{}, len(users))
	for _, u := range users {
		p.online[u] = struct{}{}
	}
}

func (p *PresenceSet) Online(userID string)  { p.online[userID] = struct{}{} }
func (p *PresenceSet) Offline(userID string) { delete(p.online, userID) }

func (p *PresenceSet) IsOnline(userID string) bool {
	_, ok := p.online[userID]
	return ok
}

// List returns the online users, sorted.
func (p *PresenceSet) List() []string {
	out := make([]string, 0, len(p.online))
	for u := range p.online {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
