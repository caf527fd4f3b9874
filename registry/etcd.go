// EtcdRegistry is the teacher's original backend, generalized from a
// single ServiceInstance per key to the Service/Node shape. etcd
// provides a distributed, strongly-consistent key-value store; each
// node registration becomes an entry under
// /microcore/{service}/{version}/{node.id}, TTL-leased so a crashed
// node's entry expires automatically instead of lingering as a ghost.
//
// Kept as a third selectable backend (MICRO_REGISTRY=etcd) alongside
// MemoryRegistry and ConsulRegistry — see DESIGN.md's resolution of the
// registry-backend open question.
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdPrefix = "/microcore/"

type EtcdRegistry struct {
	client *clientv3.Client
}

func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

func etcdKey(name, version, nodeID string) string {
	if version == "" {
		version = "*"
	}
	return etcdPrefix + name + "/" + version + "/" + nodeID
}

// Register writes every node in svc with a TTL lease and starts a
// background KeepAlive. leaseID deliberately stays a local variable, not
// a struct field, so one EtcdRegistry can register many services
// concurrently without a data race on shared lease state.
func (r *EtcdRegistry) Register(svc Service, ttl time.Duration) error {
	ctx := context.Background()
	secs := int64(ttl / time.Second)
	if secs <= 0 {
		secs = 10
	}

	for _, node := range svc.Nodes {
		grantCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lease, err := r.client.Grant(grantCtx, secs)
		cancel()
		if err != nil {
			return &ConnectionError{Backend: "etcd", Cause: err}
		}

		entry := wireService{
			Name:     svc.Name,
			Version:  svc.Version,
			Metadata: svc.Metadata,
			Node:     node,
		}
		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		key := etcdKey(svc.Name, svc.Version, node.ID)
		if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
			return &ConnectionError{Backend: "etcd", Cause: err}
		}

		ch, err := r.client.KeepAlive(ctx, lease.ID)
		if err != nil {
			return &ConnectionError{Backend: "etcd", Cause: err}
		}
		go func() {
			for range ch {
			}
		}()
	}
	return nil
}

func (r *EtcdRegistry) Deregister(svc Service) error {
	ctx := context.Background()
	for _, node := range svc.Nodes {
		key := etcdKey(svc.Name, svc.Version, node.ID)
		if _, err := r.client.Delete(ctx, key); err != nil {
			return &ConnectionError{Backend: "etcd", Cause: err}
		}
	}
	return nil
}

func (r *EtcdRegistry) GetService(name, version string) ([]Service, error) {
	ctx := context.Background()
	prefix := etcdPrefix + name + "/"
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, &ConnectionError{Backend: "etcd", Cause: err}
	}

	byVersion := make(map[string]*Service)
	for _, kv := range resp.Kvs {
		var entry wireService
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			continue
		}
		if version != "" && version != "*" && entry.Version != version {
			continue
		}
		s, ok := byVersion[entry.Version]
		if !ok {
			s = &Service{Name: entry.Name, Version: entry.Version, Metadata: entry.Metadata}
			byVersion[entry.Version] = s
		}
		s.Nodes = append(s.Nodes, entry.Node)
	}

	out := make([]Service, 0, len(byVersion))
	for _, s := range byVersion {
		out = append(out, *s)
	}
	return out, nil
}

func (r *EtcdRegistry) ListServices() ([]Service, error) {
	ctx := context.Background()
	resp, err := r.client.Get(ctx, etcdPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, &ConnectionError{Backend: "etcd", Cause: err}
	}
	byKey := make(map[string]*Service)
	for _, kv := range resp.Kvs {
		var entry wireService
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			continue
		}
		k := entry.Name + "/" + entry.Version
		s, ok := byKey[k]
		if !ok {
			s = &Service{Name: entry.Name, Version: entry.Version, Metadata: entry.Metadata}
			byKey[k] = s
		}
		s.Nodes = append(s.Nodes, entry.Node)
	}
	out := make([]Service, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, *s)
	}
	return out, nil
}

// Watch uses etcd's server-push Watch API under the service's prefix.
// On any change it re-fetches the full node list and diffs against the
// previous snapshot to synthesize Create/Delete events — simpler
// than parsing individual etcd watch events, at the cost of an extra
// round trip per change. Transient stream errors are retried with
// capped exponential backoff rather than surfaced to Next's caller.
func (r *EtcdRegistry) Watch(name string) (Watcher, error) {
	w := &etcdWatcher{
		reg:    r,
		name:   name,
		events: make(chan Event, 32),
		stopCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

type etcdWatcher struct {
	reg    *EtcdRegistry
	name   string
	events chan Event
	stopCh chan struct{}
}

func (w *etcdWatcher) run() {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	prefix := etcdPrefix
	if w.name != "" {
		prefix = etcdPrefix + w.name + "/"
	}

	fetch := func() ([]Service, error) {
		if w.name == "" {
			return w.reg.ListServices()
		}
		return w.reg.GetService(w.name, "*")
	}

	var prevNodeIDs map[string]struct{}
	if services, err := fetch(); err == nil {
		prevNodeIDs = make(map[string]struct{})
		for _, s := range services {
			for _, n := range s.Nodes {
				prevNodeIDs[n.ID] = struct{}{}
			}
		}
	}
	watchCh := w.reg.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
	for {
		select {
		case <-w.stopCh:
			return
		case resp, ok := <-watchCh:
			if !ok || resp.Err() != nil {
				time.Sleep(bo.NextBackOff())
				watchCh = w.reg.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
				continue
			}
			bo.Reset()

			services, err := fetch()
			if err != nil {
				continue
			}
			nextNodeIDs := make(map[string]struct{})
			for _, s := range services {
				for _, n := range s.Nodes {
					nextNodeIDs[n.ID] = struct{}{}
					if prevNodeIDs == nil {
						continue
					}
					if _, existed := prevNodeIDs[n.ID]; !existed {
						w.emit(Event{Type: Create, Service: s})
					}
				}
			}
			if prevNodeIDs != nil {
				for id := range prevNodeIDs {
					if _, still := nextNodeIDs[id]; !still {
						w.emit(Event{Type: Delete, Service: Service{Name: w.name}})
					}
				}
			}
			prevNodeIDs = nextNodeIDs
		}
	}
}

func (w *etcdWatcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.stopCh:
	}
}

func (w *etcdWatcher) Next() (*Event, error) {
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

func (w *etcdWatcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// wireService is the JSON shape stored per-key in etcd.
type wireService struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Node     Node              `json:"node"`
}
