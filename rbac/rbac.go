// Package rbac implements the role/permission model of spec §3 on top of
// casbin/casbin/v2's policy evaluation. Casbin's own matcher has no
// built-in notion of "this position matches anything" — so the inline
// model below treats the literal string "*" specially in every position
// (subject, resource, action), and Permission.Matches treats an empty
// Scope as matching any scope, as §3's wildcard rule specifies.
package rbac

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// rbacModel is the inline Casbin model text: an RBAC model extended so
// "*" in any policy field matches every request value in that field.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || g(r.sub, p.sub) || r.sub == p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Principal is the authenticated identity a guard checks access for —
// typically populated by the jwt_auth middleware and read back by
// RoleGuard/PermissionGuard.
type Principal struct {
	ID    string
	Roles []string
}

// Permission names a (resource, action, scope?) triple (spec §3). "*" in
// Resource or Action matches any value in that position; an empty Scope
// on either the held or the required permission matches any scope — the
// wildcard rule spec §8 requires as a testable property.
type Permission struct {
	Resource string
	Action   string
	Scope    string
}

// Matches reports whether p — a permission a role holds — covers a
// request for (resource, action, scope).
func (p Permission) Matches(resource, action, scope string) bool {
	if p.Resource != "*" && p.Resource != resource {
		return false
	}
	if p.Action != "*" && p.Action != action {
		return false
	}
	if p.Scope != "" && scope != "" && p.Scope != scope {
		return false
	}
	return true
}

// Role is a named bundle of Permissions that may inherit another Role's
// permissions through Parent (spec §3 "Role = (name, permissions, parent?)").
type Role struct {
	Name        string
	Permissions []Permission
	Parent      *Role
}

// EffectivePermissions returns r's own permissions plus everything
// inherited transitively through Parent.
func (r *Role) EffectivePermissions() []Permission {
	perms := append([]Permission{}, r.Permissions...)
	if r.Parent != nil {
		perms = append(perms, r.Parent.EffectivePermissions()...)
	}
	return perms
}

// Enforcer wraps a casbin.Enforcer seeded with the wildcard-aware RBAC
// model above, plus a mutex — casbin's default Enforcer is not
// goroutine-safe for concurrent policy mutation, and Enforce and
// HasPermission may be called from many requests at once.
type Enforcer struct {
	mu    sync.RWMutex
	e     *casbin.Enforcer
	roles map[string]*Role
}

// NewEnforcer builds an empty enforcer; call RegisterRole before wiring
// it into PermissionGuard (which checks through HasPermission), and
// AddPolicy/AddRoleForUser before calling Enforce. RoleGuard does not
// consult the enforcer.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("rbac: invalid model: %w", err)
	}
	ce, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac: new enforcer: %w", err)
	}
	return &Enforcer{e: ce, roles: make(map[string]*Role)}, nil
}

// RegisterRole makes role's (possibly inherited) Permissions available to
// HasPermission for any principal carrying role.Name among its Roles.
func (en *Enforcer) RegisterRole(role *Role) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.roles[role.Name] = role
}

// HasPermission reports whether p holds a permission — through any of its
// declared roles, including inherited ones — matching required (spec §3's
// Permission model, wildcard rule included via Permission.Matches).
func (en *Enforcer) HasPermission(p Principal, required Permission) bool {
	en.mu.RLock()
	defer en.mu.RUnlock()
	for _, roleName := range p.Roles {
		role, ok := en.roles[roleName]
		if !ok {
			continue
		}
		for _, held := range role.EffectivePermissions() {
			if held.Matches(required.Resource, required.Action, required.Scope) {
				return true
			}
		}
	}
	return false
}

// AddPolicy grants (role, resource, action). role == "*" grants to every
// principal; resource/action == "*" grants over every resource/action.
func (en *Enforcer) AddPolicy(role, resource, action string) error {
	en.mu.Lock()
	defer en.mu.Unlock()
	_, err := en.e.AddPolicy(role, resource, action)
	return err
}

// AddRoleForUser assigns role to a principal ID (casbin grouping policy).
func (en *Enforcer) AddRoleForUser(principalID, role string) error {
	en.mu.Lock()
	defer en.mu.Unlock()
	_, err := en.e.AddGroupingPolicy(principalID, role)
	return err
}

// Enforce reports whether p is allowed to perform action on resource,
// checking the principal's ID directly and each of its declared Roles —
// any one granting policy is sufficient.
func (en *Enforcer) Enforce(p Principal, resource, action string) (bool, error) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	ok, err := en.e.Enforce(p.ID, resource, action)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	for _, role := range p.Roles {
		ok, err := en.e.Enforce(role, resource, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
