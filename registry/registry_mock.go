package registry

import "time"

// MockRegistry is a minimal fake used across client, gateway, and
// test-package tests, generalizing the ad hoc MockRegistry the teacher redefined in
// both client_test.go and test/bench_test.go into one reusable type.
type MockRegistry struct {
	Services map[string][]Node // serviceName -> nodes, version ignored
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{Services: make(map[string][]Node)}
}

func (m *MockRegistry) Register(svc Service, ttl time.Duration) error {
	m.Services[svc.Name] = append(m.Services[svc.Name], svc.Nodes...)
	return nil
}

func (m *MockRegistry) Deregister(svc Service) error {
	remove := make(map[string]struct{}, len(svc.Nodes))
	for _, n := range svc.Nodes {
		remove[n.ID] = struct{}{}
	}
	kept := m.Services[svc.Name][:0:0]
	for _, n := range m.Services[svc.Name] {
		if _, gone := remove[n.ID]; !gone {
			kept = append(kept, n)
		}
	}
	m.Services[svc.Name] = kept
	return nil
}

func (m *MockRegistry) GetService(name, version string) ([]Service, error) {
	nodes, ok := m.Services[name]
	if !ok || len(nodes) == 0 {
		return []Service{}, nil
	}
	return []Service{{Name: name, Version: version, Nodes: nodes}}, nil
}

func (m *MockRegistry) ListServices() ([]Service, error) {
	out := make([]Service, 0, len(m.Services))
	for name, nodes := range m.Services {
		out = append(out, Service{Name: name, Nodes: nodes})
	}
	return out, nil
}

func (m *MockRegistry) Watch(name string) (Watcher, error) {
	return &noopWatcher{}, nil
}

type noopWatcher struct{}

func (noopWatcher) Next() (*Event, error) { select {} }
func (noopWatcher) Stop()                 {}
