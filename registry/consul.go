// ConsulRegistry implements Registry against a real Consul agent using
// the official hashicorp/consul/api client, following the wire dialect
// named in spec §6: PUT /v1/agent/service/register for registration and
// a blocking GetService query parameterized by X-Consul-Index for Watch.
package registry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	consulapi "github.com/hashicorp/consul/api"
)

type ConsulRegistry struct {
	client *consulapi.Client
}

func NewConsulRegistry(addr string) (*ConsulRegistry, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ConsulRegistry{client: client}, nil
}

func consulServiceID(svc Service, node Node) string {
	return svc.Name + "-" + svc.Version + "-" + node.ID
}

// Register issues one agent service registration per node, with a TTL
// check that it marks passing once; nothing here renews it. Unless
// Register is called again within ttl, the check goes critical and
// Consul deregisters the node 3*ttl after that.
func (r *ConsulRegistry) Register(svc Service, ttl time.Duration) error {
	for _, node := range svc.Nodes {
		tags := []string{"version=" + svc.Version}
		reg := &consulapi.AgentServiceRegistration{
			ID:      consulServiceID(svc, node),
			Name:    svc.Name,
			Address: node.Address,
			Port:    node.Port,
			Tags:    tags,
			Meta:    mergeMeta(svc.Metadata, node.Metadata),
		}
		if ttl > 0 {
			reg.Check = &consulapi.AgentServiceCheck{
				TTL:                            ttl.String(),
				DeregisterCriticalServiceAfter: (ttl * 3).String(),
			}
		}
		if err := r.client.Agent().ServiceRegister(reg); err != nil {
			return &ConnectionError{Backend: "consul", Cause: err}
		}
		if ttl > 0 {
			if err := r.client.Agent().UpdateTTL("service:"+reg.ID, "", consulapi.HealthPassing); err != nil {
				return &ConnectionError{Backend: "consul", Cause: err}
			}
		}
	}
	return nil
}

func mergeMeta(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (r *ConsulRegistry) Deregister(svc Service) error {
	for _, node := range svc.Nodes {
		id := consulServiceID(svc, node)
		if err := r.client.Agent().ServiceDeregister(id); err != nil {
			return &ConnectionError{Backend: "consul", Cause: err}
		}
	}
	return nil
}

func (r *ConsulRegistry) GetService(name, version string) ([]Service, error) {
	entries, _, err := r.client.Health().Service(name, "", true, nil)
	if err != nil {
		return nil, &ConnectionError{Backend: "consul", Cause: err}
	}
	return groupConsulEntries(entries, version), nil
}

func (r *ConsulRegistry) ListServices() ([]Service, error) {
	names, _, err := r.client.Catalog().Services(nil)
	if err != nil {
		return nil, &ConnectionError{Backend: "consul", Cause: err}
	}
	out := make([]Service, 0, len(names))
	for name := range names {
		svcs, err := r.GetService(name, "*")
		if err != nil {
			continue
		}
		out = append(out, svcs...)
	}
	return out, nil
}

func groupConsulEntries(entries []*consulapi.ServiceEntry, version string) []Service {
	byVersion := make(map[string]*Service)
	for _, e := range entries {
		v := consulTagVersion(e.Service.Tags)
		if version != "" && version != "*" && v != version {
			continue
		}
		s, ok := byVersion[v]
		if !ok {
			s = &Service{Name: e.Service.Service, Version: v, Metadata: e.Service.Meta}
			byVersion[v] = s
		}
		s.Nodes = append(s.Nodes, Node{
			ID:       e.Service.ID,
			Address:  e.Service.Address,
			Port:     e.Service.Port,
			Metadata: e.Service.Meta,
		})
	}
	out := make([]Service, 0, len(byVersion))
	for _, s := range byVersion {
		out = append(out, *s)
	}
	return out
}

func consulTagVersion(tags []string) string {
	for _, t := range tags {
		if len(t) > 8 && t[:8] == "version=" {
			return t[8:]
		}
	}
	return ""
}

// Watch long-polls Health().Service using the blocking-query index
// returned on the previous call, per the X-Consul-Index dialect named in
// spec §6 — each call blocks server-side until the index advances or a
// timeout elapses, rather than the client polling on a fixed interval.
func (r *ConsulRegistry) Watch(name string) (Watcher, error) {
	w := &consulWatcher{
		client: r.client,
		name:   name,
		events: make(chan Event, 32),
		stopCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

type consulWatcher struct {
	client *consulapi.Client
	name   string
	events chan Event
	stopCh chan struct{}
}

func (w *consulWatcher) run() {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	var lastIndex uint64
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		opts := &consulapi.QueryOptions{WaitIndex: lastIndex, WaitTime: 5 * time.Minute}
		entries, meta, err := w.client.Health().Service(w.name, "", true, opts)
		if err != nil {
			time.Sleep(bo.NextBackOff())
			continue
		}
		bo.Reset()
		if meta.LastIndex == lastIndex {
			continue
		}
		lastIndex = meta.LastIndex

		for _, s := range groupConsulEntries(entries, "*") {
			select {
			case w.events <- Event{Type: Update, Service: s}:
			case <-w.stopCh:
				return
			}
		}
	}
}

func (w *consulWatcher) Next() (*Event, error) {
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

func (w *consulWatcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}
