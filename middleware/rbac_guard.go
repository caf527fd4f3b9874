package middleware

import (
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rbac"
	"github.com/bx-d/corerpc/rpcerr"
)

// RoleGuard requires the authenticated principal to hold roles — every one
// of them if requireAll, otherwise any single one — before a request
// reaches the handler (spec §4.4 #12 "role_guard(roles, require_all?)").
// A missing principal is Unauthorized (401); a present principal lacking
// the required roles is Forbidden (403).
func RoleGuard(roles []string, requireAll bool) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			principal, ok := PrincipalFrom(ctx)
			if !ok {
				ctx.Response.Err = rpcerr.Unauthorized("no authenticated principal")
				return
			}

			held := make(map[string]bool, len(principal.Roles))
			for _, r := range principal.Roles {
				held[r] = true
			}

			if requireAll {
				for _, r := range roles {
					if !held[r] {
						ctx.Response.Err = rpcerr.Forbidden("insufficient roles")
						return
					}
				}
			} else if len(roles) > 0 {
				if !anyHeld(roles, held) {
					ctx.Response.Err = rpcerr.Forbidden("insufficient roles")
					return
				}
			}
			next(ctx)
		}
	}
}

// PermissionGuard requires the authenticated principal to hold perms —
// every one if requireAll, otherwise any single one — checked via
// enforcer.HasPermission (spec §4.4 #12 "permission_guard(perms,
// require_all?)"). Same 401/403 split as RoleGuard.
func PermissionGuard(enforcer *rbac.Enforcer, perms []rbac.Permission, requireAll bool) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			principal, ok := PrincipalFrom(ctx)
			if !ok {
				ctx.Response.Err = rpcerr.Unauthorized("no authenticated principal")
				return
			}

			if requireAll {
				for _, perm := range perms {
					if !enforcer.HasPermission(principal, perm) {
						ctx.Response.Err = rpcerr.Forbidden("insufficient permissions")
						return
					}
				}
			} else if len(perms) > 0 {
				granted := false
				for _, perm := range perms {
					if enforcer.HasPermission(principal, perm) {
						granted = true
						break
					}
				}
				if !granted {
					ctx.Response.Err = rpcerr.Forbidden("insufficient permissions")
					return
				}
			}
			next(ctx)
		}
	}
}

func anyHeld(want []string, held map[string]bool) bool {
	for _, w := range want {
		if held[w] {
			return true
		}
	}
	return false
}
