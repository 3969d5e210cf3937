// Package rib holds the normalized routing-information-base: one Entry per
// routing-table row observed on a router, across all vendors.
package rib

import (
	"sort"
	"strings"
	"sync"
)

// Protocol is the normalized route source protocol. Vendor-specific names
// are mapped onto these values by the collectors.
type Protocol string

const (
	ProtocolConnected Protocol = "Connected"
	ProtocolLocal     Protocol = "Local"
	ProtocolDirect    Protocol = "Direct"
	ProtocolStatic    Protocol = "Static"
	ProtocolOSPF      Protocol = "OSPF"
	ProtocolBGP       Protocol = "BGP"
	ProtocolISIS      Protocol = "ISIS"
	ProtocolRIP       Protocol = "RIP"
)

// NextHopDirect is the next-hop sentinel for routes without a gateway.
const NextHopDirect = "Directly connected"

// IsLocal reports whether the protocol denotes an interface-local route,
// the kind the interface index is built from.
func (p Protocol) IsLocal() bool {
	switch p {
	case ProtocolConnected, ProtocolLocal, ProtocolDirect:
		return true
	}
	return false
}

// IsDynamic reports whether the protocol is a dynamic routing protocol
// whose routes indicate control-plane adjacencies.
func (p Protocol) IsDynamic() bool {
	switch p {
	case ProtocolOSPF, ProtocolBGP, ProtocolISIS, ProtocolRIP:
		return true
	}
	return false
}

// Entry is one routing-table row as observed on a router.
type Entry struct {
	Router      string   `json:"router"`
	Loopback    string   `json:"loopback_ip"`
	Protocol    Protocol `json:"protocol"`
	Destination string   `json:"destination"` // CIDR
	Interface   string   `json:"interface"`
	NextHop     string   `json:"next_hop"`
}

// Key returns the uniqueness key for an entry. Duplicate observations of
// the same row collapse onto one key.
func (e Entry) Key() string {
	return strings.Join([]string{
		e.Router, e.Loopback, string(e.Protocol), e.Destination, e.Interface, e.NextHop,
	}, "|")
}

// HasNextHop reports whether the entry carries a real gateway address
// rather than a directly-connected or empty sentinel.
func (e Entry) HasNextHop() bool {
	switch e.NextHop {
	case "", "N/A", NextHopDirect, string(ProtocolDirect), string(ProtocolLocal):
		return false
	}
	return true
}

// Store holds the current RIB, keyed by router. Writers replace a router's
// rows wholesale on each collection cycle; duplicate rows are ignored.
type Store struct {
	mu       sync.RWMutex
	byRouter map[string][]Entry
	keys     map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		byRouter: make(map[string][]Entry),
		keys:     make(map[string]struct{}),
	}
}

// Add inserts a single entry, ignoring duplicates. Returns whether the
// entry was new.
func (s *Store) Add(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(e)
}

func (s *Store) add(e Entry) bool {
	key := e.Key()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.byRouter[e.Router] = append(s.byRouter[e.Router], e)
	return true
}

// ReplaceRouter replaces all rows for one router with the given set.
// Duplicate rows within the set are dropped.
func (s *Store) ReplaceRouter(router string, entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.byRouter[router] {
		delete(s.keys, old.Key())
	}
	delete(s.byRouter, router)

	for _, e := range entries {
		e.Router = router
		s.add(e)
	}
}

// ReplaceAll replaces the entire RIB.
func (s *Store) ReplaceAll(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRouter = make(map[string][]Entry)
	s.keys = make(map[string]struct{})
	for _, e := range entries {
		s.add(e)
	}
}

// RemoveRouter drops all rows for a router.
func (s *Store) RemoveRouter(router string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.byRouter[router] {
		delete(s.keys, old.Key())
	}
	delete(s.byRouter, router)
}

// Routers returns the router ids present in the store, sorted.
func (s *Store) Routers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routers := make([]string, 0, len(s.byRouter))
	for r := range s.byRouter {
		routers = append(routers, r)
	}
	sort.Strings(routers)
	return routers
}

// Router returns a copy of one router's rows.
func (s *Store) Router(router string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.byRouter[router]))
	copy(entries, s.byRouter[router])
	return entries
}

// Snapshot returns a copy of all rows, ordered by router and insertion
// order within a router.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routers := make([]string, 0, len(s.byRouter))
	for r := range s.byRouter {
		routers = append(routers, r)
	}
	sort.Strings(routers)

	var entries []Entry
	for _, r := range routers {
		entries = append(entries, s.byRouter[r]...)
	}
	return entries
}

// Len returns the number of rows in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
