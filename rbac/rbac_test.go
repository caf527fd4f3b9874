package rbac

import "testing"

func TestEnforceRoleGrant(t *testing.T) {
	en, err := NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	if err := en.AddPolicy("admin", "orders", "delete"); err != nil {
		t.Fatal(err)
	}
	if err := en.AddRoleForUser("alice", "admin"); err != nil {
		t.Fatal(err)
	}

	ok, err := en.Enforce(Principal{ID: "alice", Roles: []string{"admin"}}, "orders", "delete")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected alice (admin) to be allowed to delete orders")
	}

	ok, err = en.Enforce(Principal{ID: "bob"}, "orders", "delete")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected bob to be denied")
	}
}

func TestWildcardResourceAndAction(t *testing.T) {
	en, err := NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	if err := en.AddPolicy("superuser", "*", "*"); err != nil {
		t.Fatal(err)
	}

	ok, err := en.Enforce(Principal{Roles: []string{"superuser"}}, "anything", "anything")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected superuser wildcard to match every resource/action")
	}
}

func TestHasPermissionInheritsFromParentRole(t *testing.T) {
	en, err := NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}

	base := &Role{Name: "viewer", Permissions: []Permission{{Resource: "orders", Action: "read"}}}
	en.RegisterRole(base)
	en.RegisterRole(&Role{Name: "manager", Permissions: []Permission{{Resource: "orders", Action: "approve"}}, Parent: base})

	p := Principal{ID: "carol", Roles: []string{"manager"}}

	if !en.HasPermission(p, Permission{Resource: "orders", Action: "approve"}) {
		t.Fatal("expect manager's own permission to be granted")
	}
	if !en.HasPermission(p, Permission{Resource: "orders", Action: "read"}) {
		t.Fatal("expect manager to inherit viewer's permission through Parent")
	}
	if en.HasPermission(p, Permission{Resource: "orders", Action: "delete"}) {
		t.Fatal("expect ungranted action to be denied")
	}
}

func TestPermissionMatchesNilScopeWildcard(t *testing.T) {
	held := Permission{Resource: "ticket", Action: "read"} // no Scope

	if !held.Matches("ticket", "read", "team-9") {
		t.Fatal("expect a nil-scope held permission to match any requested scope")
	}
	if !held.Matches("ticket", "read", "") {
		t.Fatal("expect a nil-scope held permission to match a nil requested scope")
	}
	if held.Matches("ticket", "write", "team-9") {
		t.Fatal("expect action mismatch to deny regardless of scope")
	}
}

func TestPermissionMatchesExplicitScope(t *testing.T) {
	held := Permission{Resource: "ticket", Action: "read", Scope: "team-9"}

	if !held.Matches("ticket", "read", "team-9") {
		t.Fatal("expect matching scope to be granted")
	}
	if held.Matches("ticket", "read", "team-1") {
		t.Fatal("expect mismatched scope to be denied")
	}
}

func TestWildcardSubject(t *testing.T) {
	en, err := NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	if err := en.AddPolicy("*", "docs", "read"); err != nil {
		t.Fatal(err)
	}

	ok, err := en.Enforce(Principal{ID: "anonymous"}, "docs", "read")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected subject wildcard to grant read access to any principal")
	}
}
