package domain

import "testing"

func TestRoleSetMembership(t *testing.T) {
	if !BrokerEmployees.Has(RoleAccountManager) {
		t.Fatalf("account manager should be a broker employee")
	}
	if SeniorClaimManagers.Has(RoleAccountManager) {
		t.Fatalf("account manager is not a senior claim manager")
	}
	if TopAdmin.Has(RoleAdmin) {
		t.Fatalf("admin is not top admin")
	}
	if BrokerEmployees.Has(Role("")) || BrokerEmployees.Has(Role("ROOT")) {
		t.Fatalf("unknown roles must never be members")
	}
	got := ScopedRoles.List()
	if len(got) != 2 || got[0] != RoleClientAdmin || got[1] != RoleAffiliate {
		t.Fatalf("unexpected scoped roles %v", got)
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" claims_manager ")
	if !ok || r != RoleClaimsManager {
		t.Fatalf("parse: got %q %v", r, ok)
	}
	if _, ok := ParseRole("janitor"); ok {
		t.Fatalf("unknown role parsed")
	}
}
