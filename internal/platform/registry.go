package platform

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry maps platform identifiers, aliases and job-URL hosts to strategies.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy // by ID
	keys       map[string]string    // normalized key -> ID
	order      []string
}

// NewRegistry returns a registry holding the given strategies.
func NewRegistry(strategies ...*Strategy) (*Registry, error) {
	r := &Registry{
		strategies: make(map[string]*Strategy),
		keys:       make(map[string]string),
	}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with every built-in strategy.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("platform: invalid built-in strategy: %v", err))
	}
	return r
}

// Register adds a strategy. Its ID and aliases must not collide with another strategy.
func (r *Registry) Register(s *Strategy) error {
	if err := s.Validate(); err != nil {
		return err
	}

	id := NormalizeKey(s.ID)
	keys := []string{id}
	for _, alias := range s.Aliases {
		if k := NormalizeKey(alias); k != "" {
			keys = append(keys, k)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[id]; exists {
		return fmt.Errorf("platform %q is already registered", s.ID)
	}
	for _, k := range keys {
		if owner, taken := r.keys[k]; taken && owner != id {
			return fmt.Errorf("platform %q: key %q already maps to %q", s.ID, k, owner)
		}
	}

	r.strategies[id] = s
	for _, k := range keys {
		r.keys[k] = id
	}
	r.order = append(r.order, id)
	return nil
}

// Lookup resolves a platform identifier. Matching is case-insensitive and accepts
// aliases, bare domains, full URLs and subdomains of a known domain.
func (r *Registry) Lookup(platformID string) (*Strategy, bool) {
	key := NormalizeKey(platformID)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.keys[key]; ok {
		return r.strategies[id], true
	}
	if strings.Contains(key, ".") {
		return r.matchHostLocked(key)
	}
	return nil, false
}

// Detect identifies the platform hosting jobURL from its host name.
func (r *Registry) Detect(jobURL string) (*Strategy, bool) {
	parsed, err := url.Parse(strings.TrimSpace(jobURL))
	if err != nil || parsed.Host == "" {
		return nil, false
	}
	host := strings.ToLower(parsed.Hostname())

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matchHostLocked(host)
}

func (r *Registry) matchHostLocked(host string) (*Strategy, bool) {
	for _, id := range r.order {
		s := r.strategies[id]
		for _, domain := range s.Domains {
			domain = strings.ToLower(domain)
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return s, true
			}
		}
	}
	return nil, false
}

// IDs returns the registered platform IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Strategies returns the registered strategies in registration order.
func (r *Registry) Strategies() []*Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Strategy, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.strategies[id])
	}
	return out
}

// NormalizeKey lowercases and trims an identifier, reducing URLs to their host and
// dropping a leading "www.".
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Hostname()
		}
	} else if i := strings.IndexByte(s, '/'); i > 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, ".")
}
