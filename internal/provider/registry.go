package provider

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages all available site descriptors
type Registry struct {
	mu            sync.RWMutex
	descriptors   map[string]*Descriptor
	sites         map[string]string
	priorities    map[string]int
	enabledStatus map[string]bool
}

// NewRegistry creates a new descriptor registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors:   make(map[string]*Descriptor),
		sites:         make(map[string]string),
		priorities:    make(map[string]int),
		enabledStatus: make(map[string]bool),
	}
}

// Register adds a descriptor to the registry. Sites need no credentials, so
// new descriptors start enabled.
func (r *Registry) Register(d *Descriptor, priority int) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("provider %s already registered", d.Name)
	}
	if owner, exists := r.sites[d.Site]; exists {
		return fmt.Errorf("site %s already registered by %s", d.Site, owner)
	}

	r.descriptors[d.Name] = d
	r.sites[d.Site] = d.Name
	r.priorities[d.Name] = priority
	r.enabledStatus[d.Name] = true

	return nil
}

// Get returns a descriptor by name or site
func (r *Registry) Get(nameOrSite string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.getUnsafe(nameOrSite)
}

func (r *Registry) getUnsafe(nameOrSite string) (*Descriptor, bool) {
	if d, ok := r.descriptors[nameOrSite]; ok {
		return d, true
	}
	if name, ok := r.sites[nameOrSite]; ok {
		return r.descriptors[name], true
	}
	return nil, false
}

// List returns all registered names, highest priority first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.priorities[names[i]], r.priorities[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})

	return names
}

// Enabled returns the enabled descriptors in List order
func (r *Registry) Enabled() []*Descriptor {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		if r.enabledStatus[name] {
			out = append(out, r.descriptors[name])
		}
	}
	return out
}

// Enable enables a descriptor
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable disables a descriptor
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(nameOrSite string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.getUnsafe(nameOrSite)
	if !exists {
		return fmt.Errorf("provider %s not found", nameOrSite)
	}
	r.enabledStatus[d.Name] = enabled
	return nil
}

// IsEnabled reports whether a descriptor is registered and enabled
func (r *Registry) IsEnabled(nameOrSite string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.getUnsafe(nameOrSite)
	return exists && r.enabledStatus[d.Name]
}

// Overrides are user settings applied on top of a built-in descriptor.
type Overrides struct {
	Correction          *time.Duration
	DropOnMissingDetail *bool
}

// Configure applies overrides to a descriptor. The registered descriptor is
// replaced by a modified copy so descriptors already handed out stay
// unchanged.
func (r *Registry) Configure(nameOrSite string, o Overrides) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.getUnsafe(nameOrSite)
	if !exists {
		return fmt.Errorf("provider %s not found", nameOrSite)
	}

	updated := *d
	if o.Correction != nil {
		updated.Correction = *o.Correction
	}
	if o.DropOnMissingDetail != nil {
		updated.DropOnMissingDetail = *o.DropOnMissingDetail
	}
	r.descriptors[d.Name] = &updated

	return nil
}
