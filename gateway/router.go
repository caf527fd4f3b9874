package gateway

import "strings"

// node is one segment of the radix tree. A literal segment ("products")
// is keyed by exact string in children; a parameter segment (":id")
// lives in param instead, since at most one parameter child can exist
// at a given depth without the tree becoming ambiguous.
type node struct {
	children map[string]*node
	param    *node
	paramName string
	routes   map[string]*Route // keyed by HTTP method
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Router resolves (method, path) to a registered Route plus the path
// parameters captured along the way. Routes are built once at start-up
// and looked up read-only per request (spec §5 "the gateway router is
// read-mostly"). Router holds no lock and has no way to swap in a new
// tree: Register mutates the live tree and is not safe to call while
// Match runs concurrently.
type Router struct {
	root *node
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{root: newNode()}
}

// Register adds route to the tree under its Method and Path.
func (rt *Router) Register(route *Route) {
	segments := splitPath(route.Path)
	cur := rt.root
	for _, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			if cur.param == nil {
				cur.param = newNode()
				cur.param.paramName = seg[1:]
			}
			cur = cur.param
			continue
		}
		child, ok := cur.children[seg]
		if !ok {
			child = newNode()
			cur.children[seg] = child
		}
		cur = child
	}
	if cur.routes == nil {
		cur.routes = make(map[string]*Route)
	}
	cur.routes[route.Method] = route
}

// Match resolves method and path to a Route and its captured path
// parameters. ok is false when no route matches either the path shape
// or the method at a matching path.
func (rt *Router) Match(method, path string) (route *Route, params map[string]string, ok bool) {
	segments := splitPath(path)
	params = make(map[string]string)
	cur := rt.root
	for _, seg := range segments {
		if child, exists := cur.children[seg]; exists {
			cur = child
			continue
		}
		if cur.param != nil {
			params[cur.param.paramName] = seg
			cur = cur.param
			continue
		}
		return nil, nil, false
	}
	if cur.routes == nil {
		return nil, nil, false
	}
	route, ok = cur.routes[method]
	return route, params, ok
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
