package permit

import "testing"

func TestRoleHierarchyMonotonic(t *testing.T) {
	roles := Roles()
	for i, r1 := range roles {
		for j, r2 := range roles {
			want := i >= j
			if got := r1.AtLeast(r2); got != want {
				t.Fatalf("AtLeast(%s, %s) = %v, want %v", r1, r2, got, want)
			}
		}
	}
}

func TestRoleUnknownFailsBothSides(t *testing.T) {
	unknown := Role("owner")
	for _, r := range Roles() {
		if unknown.AtLeast(r) {
			t.Fatalf("unknown role passed AtLeast(%s)", r)
		}
		if r.AtLeast(unknown) {
			t.Fatalf("%s passed AtLeast against unknown role", r)
		}
	}
	if unknown.AtLeast(unknown) {
		t.Fatal("unknown role compared equal to itself")
	}
}

func TestResourceKinds(t *testing.T) {
	if !ResourceGroups.Nested() || !ResourceAdmins.Nested() {
		t.Fatal("groups and admins must be nested")
	}
	for _, res := range []Resource{ResourceAssignments, ResourceUsers, ResourceTasks} {
		if res.Nested() {
			t.Fatalf("%s should be flat", res)
		}
	}
	if !ResourceGroups.ValidSub(SubResourceSchools) {
		t.Fatal("schools should be valid under groups")
	}
	if ResourceGroups.ValidSub(SubResourceAdmin) {
		t.Fatal("admin sub-resource leaked into groups")
	}
	if ResourceAdmins.ValidSub(SubResourceSites) {
		t.Fatal("sites sub-resource leaked into admins")
	}
}

func TestSuperAdminAnywhere(t *testing.T) {
	u := &User{UID: "u1", Roles: []RoleAssignment{
		{SiteID: "s1", Role: RoleParticipant},
		{SiteID: "s9", Role: RoleSuperAdmin},
	}}
	if !u.IsSuperAdmin() {
		t.Fatal("super_admin assignment on any site makes the user a super admin")
	}
}

func TestParseLogModeDefaultsOff(t *testing.T) {
	for _, value := range []string{"", "OFF", "verbose", "on"} {
		if got := ParseLogMode(value); got != LogModeOff {
			t.Fatalf("ParseLogMode(%q) = %s, want off", value, got)
		}
	}
	if ParseLogMode("baseline") != LogModeBaseline {
		t.Fatal("baseline mode not recognized")
	}
	if ParseLogMode("debug") != LogModeDebug {
		t.Fatal("debug mode not recognized")
	}
}

func TestReasonDecisionMapping(t *testing.T) {
	cases := map[Reason]Decision{
		ReasonAllowed:             DecisionAllow,
		ReasonNotAllowed:          DecisionDeny,
		ReasonNoRole:              DecisionDeny,
		ReasonNotLoaded:           DecisionIndeterminate,
		ReasonMissingParams:       DecisionIndeterminate,
		ReasonRequiresSubResource: DecisionIndeterminate,
		ReasonInvalidSubResource:  DecisionIndeterminate,
	}
	for reason, want := range cases {
		if got := reason.Decision(); got != want {
			t.Fatalf("%s.Decision() = %s, want %s", reason, got, want)
		}
	}
}
