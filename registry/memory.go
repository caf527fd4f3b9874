package registry

import (
	"errors"
	"sync"
	"time"
)

// MemoryRegistry is the in-memory backend: a guarded map with
// synchronous event fan-out to every active watcher (spec §4.2).
// broadcast does the name filtering: it skips a watcher whose name is
// set and differs from the event's service name.
type MemoryRegistry struct {
	mu       sync.Mutex
	services map[string]map[string]Service // name -> version -> Service
	watchers map[*memoryWatcher]struct{}   // removed on Stop
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		services: make(map[string]map[string]Service),
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

// Register upserts svc's nodes. ttl is accepted for interface
// compatibility but unused: the in-memory backend has no background
// process to re-assert against, so callers own the node's lifecycle
// explicitly via Deregister — matching the "synchronous, guarded map"
// design of spec §4.2's in-memory implementation.
func (r *MemoryRegistry) Register(svc Service, ttl time.Duration) error {
	r.mu.Lock()
	byVersion, ok := r.services[svc.Name]
	if !ok {
		byVersion = make(map[string]Service)
		r.services[svc.Name] = byVersion
	}
	existing, had := byVersion[svc.Version]
	merged := mergeNodes(existing, svc)
	byVersion[svc.Version] = merged
	r.mu.Unlock()

	evType := Update
	if !had {
		evType = Create
	}
	r.broadcast(Event{Type: evType, Service: merged})
	return nil
}

func mergeNodes(existing Service, incoming Service) Service {
	byID := make(map[string]Node)
	for _, n := range existing.Nodes {
		byID[n.ID] = n
	}
	for _, n := range incoming.Nodes {
		byID[n.ID] = n
	}
	nodes := make([]Node, 0, len(byID))
	for _, n := range byID {
		nodes = append(nodes, n)
	}
	meta := incoming.Metadata
	if meta == nil {
		meta = existing.Metadata
	}
	return Service{
		Name:     incoming.Name,
		Version:  incoming.Version,
		Metadata: meta,
		Nodes:    nodes,
	}
}

func (r *MemoryRegistry) Deregister(svc Service) error {
	remove := make(map[string]struct{}, len(svc.Nodes))
	for _, n := range svc.Nodes {
		remove[n.ID] = struct{}{}
	}

	r.mu.Lock()
	byVersion, ok := r.services[svc.Name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	existing, ok := byVersion[svc.Version]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	kept := existing.Nodes[:0:0]
	for _, n := range existing.Nodes {
		if _, gone := remove[n.ID]; !gone {
			kept = append(kept, n)
		}
	}
	existing.Nodes = kept
	byVersion[svc.Version] = existing
	r.mu.Unlock()

	r.broadcast(Event{Type: Delete, Service: Service{Name: svc.Name, Version: svc.Version, Nodes: svc.Nodes}})
	return nil
}

func (r *MemoryRegistry) GetService(name, version string) ([]Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byVersion, ok := r.services[name]
	if !ok {
		return []Service{}, nil
	}
	if version == "" || version == "*" {
		out := make([]Service, 0, len(byVersion))
		for _, s := range byVersion {
			out = append(out, s)
		}
		return out, nil
	}
	s, ok := byVersion[version]
	if !ok {
		return []Service{}, nil
	}
	return []Service{s}, nil
}

func (r *MemoryRegistry) ListServices() ([]Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Service, 0)
	for _, byVersion := range r.services {
		for _, s := range byVersion {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) Watch(name string) (Watcher, error) {
	w := &memoryWatcher{
		parent: r,
		name:   name,
		events: make(chan Event, 32),
		stopCh: make(chan struct{}),
	}
	r.mu.Lock()
	r.watchers[w] = struct{}{}
	r.mu.Unlock()
	return w, nil
}

func (r *MemoryRegistry) broadcast(ev Event) {
	r.mu.Lock()
	targets := make([]*memoryWatcher, 0, len(r.watchers))
	for w := range r.watchers {
		targets = append(targets, w)
	}
	r.mu.Unlock()

	for _, w := range targets {
		if w.name != "" && w.name != ev.Service.Name {
			continue
		}
		select {
		case w.events <- ev:
		case <-w.stopCh:
		default:
			// Slow watcher: drop rather than block registration callers.
			// Best-effort delivery is explicitly permitted (spec §4.2).
		}
	}
}

func (r *MemoryRegistry) forget(w *memoryWatcher) {
	r.mu.Lock()
	delete(r.watchers, w)
	r.mu.Unlock()
}

type memoryWatcher struct {
	parent *MemoryRegistry
	name   string
	events chan Event
	stopCh chan struct{}
	once   sync.Once
}

func (w *memoryWatcher) Next() (*Event, error) {
	select {
	case ev, ok := <-w.events:
		if !ok {
			return nil, errWatcherStopped
		}
		return &ev, nil
	case <-w.stopCh:
		return nil, errWatcherStopped
	}
}

func (w *memoryWatcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.parent.forget(w)
	})
}

var errWatcherStopped = errors.New("registry: watcher stopped")
