package action

import (
	"context"
	"sort"
	"sync"

	"AgentKit-Chain/internal/web3"
)

// Handler is the uniform shape every action body is stored under. Unbound
// bodies receive a nil wallet.
type Handler func(ctx context.Context, w web3.WalletProvider, args Args) (string, error)

// Descriptor is the immutable registration record of one action.
type Descriptor struct {
	Name           string
	Description    string
	Schema         *Schema
	Handler        Handler
	RequiresWallet bool
}

// Entry pairs a method name with its descriptor.
type Entry struct {
	Method     string
	Descriptor Descriptor
}

type ownerEntries struct {
	order    []string
	byMethod map[string]Descriptor
}

// Registry maps provider owners to the actions they define.
type Registry struct {
	mu     sync.RWMutex
	owners map[string]*ownerEntries
}

// DefaultRegistry is shared by providers that do not bring their own.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]*ownerEntries)}
}

// Register inserts or replaces the descriptor for owner/method. A replaced
// method keeps its original position.
func (r *Registry) Register(owner, method string, d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.owners[owner]
	if !ok {
		entries = &ownerEntries{byMethod: make(map[string]Descriptor)}
		r.owners[owner] = entries
	}
	if _, exists := entries.byMethod[method]; !exists {
		entries.order = append(entries.order, method)
	}
	entries.byMethod[method] = d
}

// Lookup returns the owner's entries in registration order. The bool is false
// when the owner never registered anything.
func (r *Registry) Lookup(owner string) ([]Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, ok := r.owners[owner]
	if !ok {
		return nil, false
	}
	out := make([]Entry, 0, len(entries.order))
	for _, method := range entries.order {
		out = append(out, Entry{Method: method, Descriptor: entries.byMethod[method]})
	}
	return out, true
}

// Owners lists every owner with at least one registration.
func (r *Registry) Owners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.owners))
	for owner := range r.owners {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}
