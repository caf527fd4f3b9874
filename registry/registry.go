// Package registry defines the service discovery contract and data
// types (spec §3, §4.2). Three backends implement Registry:
// MemoryRegistry (in-process, for tests and single-node deployments),
// ConsulRegistry (the spec's wire-level Consul dialect), and
// EtcdRegistry (the teacher's original TTL-lease design, kept as a
// third selectable backend — see DESIGN.md).
package registry

import (
	"strconv"
	"time"
)

// Node is a single running instance of a service.
type Node struct {
	ID       string
	Address  string
	Port     int
	Metadata map[string]string
}

// DialAddr returns the "host:port" form used to open a connection.
func (n Node) DialAddr() string {
	if n.Port == 0 {
		return n.Address
	}
	return n.Address + ":" + strconv.Itoa(n.Port)
}

// Weight returns the load-balancing weight carried in Metadata["weight"],
// defaulting to 1 when absent or unparseable.
func (n Node) Weight() int {
	if n.Metadata == nil {
		return 1
	}
	w, err := strconv.Atoi(n.Metadata["weight"])
	if err != nil || w <= 0 {
		return 1
	}
	return w
}

// Service is a named, versioned family of Nodes. Two Services are the
// same family iff they agree on (Name, Version).
type Service struct {
	Name     string
	Version  string
	Metadata map[string]string
	Nodes    []Node
}

// EventType distinguishes a Create/Update/Delete transition.
type EventType int

const (
	Create EventType = iota
	Update
	Delete
)

func (t EventType) String() string {
	switch t {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event reports a node-membership transition for a Service.
type Event struct {
	Type    EventType
	Service Service
}

// Watcher is a lazy sequence of Events with an explicit stop. Next
// blocks until an event is available or Stop is called, in which case
// it returns a non-nil error.
type Watcher interface {
	Next() (*Event, error)
	Stop()
}

// Registry is the service discovery contract (spec §4.2).
type Registry interface {
	// Register upserts each node in svc. A non-zero ttl arranges
	// periodic re-assertion or a backing health check so a node
	// disappears after roughly 3*ttl of silence.
	Register(svc Service, ttl time.Duration) error

	// Deregister removes exactly the (svc.Name, node.ID) tuples listed
	// in svc.Nodes.
	Deregister(svc Service) error

	// GetService returns every Service matching name and version ("*"
	// matches every version). Returns an empty slice, never an error,
	// for an unknown name.
	GetService(name, version string) ([]Service, error)

	// ListServices returns every known Service.
	ListServices() ([]Service, error)

	// Watch returns a Watcher for name, or every name when name == "".
	Watch(name string) (Watcher, error)
}

// ConnectionError is raised by Register/Deregister/GetService/
// ListServices when the backend is unavailable (spec §4.2 "Failure").
type ConnectionError struct {
	Backend string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return "registry: " + e.Backend + " unavailable: " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }
