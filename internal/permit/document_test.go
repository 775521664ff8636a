package permit

import (
	"encoding/json"
	"strings"
	"testing"
)

// testDocument grants the admin role a small slice of the matrix and the
// super_admin role everything. Roles absent from the document simply have no
// grants.
const testDocument = `{
  "version": "1.1.0",
  "updatedAt": "2026-01-15T10:00:00Z",
  "permissions": {
    "participant": {
      "groups": {"sites": [], "schools": [], "classes": [], "cohorts": []},
      "admins": {"site_admin": [], "admin": [], "research_assistant": []},
      "assignments": ["read"],
      "users": [],
      "tasks": ["read"]
    },
    "admin": {
      "groups": {"sites": [], "schools": ["read", "update"], "classes": ["read"], "cohorts": []},
      "admins": {"site_admin": [], "admin": [], "research_assistant": ["read"]},
      "assignments": ["create", "read"],
      "users": ["create", "read"],
      "tasks": ["read"]
    },
    "super_admin": {
      "groups": {
        "sites": ["create", "read", "update", "delete"],
        "schools": ["create", "read", "update", "delete"],
        "classes": ["create", "read", "update", "delete"],
        "cohorts": ["create", "read", "update", "delete", "exclude"]
      },
      "admins": {
        "site_admin": ["create", "read", "update", "delete"],
        "admin": ["create", "read", "update", "delete"],
        "research_assistant": ["create", "read", "update", "delete"]
      },
      "assignments": ["create", "read", "update", "delete", "exclude"],
      "users": ["create", "read", "update", "delete"],
      "tasks": ["create", "read", "update", "delete"]
    }
  }
}`

func decodeDocument(t *testing.T, body string) any {
	t.Helper()
	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return raw
}

func TestProcessDocumentValid(t *testing.T) {
	res := ProcessDocument(decodeDocument(t, testDocument))
	if !res.OK {
		t.Fatalf("expected valid document, got errors: %v", res.Errors)
	}
	if res.Version != CurrentVersion {
		t.Fatalf("version = %q, want %q", res.Version, CurrentVersion)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if !res.Matrix.Allows(RoleAdmin, ResourceGroups, ActionUpdate, SubResourceSchools) {
		t.Fatal("admin should update schools")
	}
	if res.Matrix.Allows(RoleAdmin, ResourceGroups, ActionDelete, SubResourceSchools) {
		t.Fatal("admin should not delete schools")
	}
	if !res.Matrix.Allows(RoleSuperAdmin, ResourceAssignments, ActionExclude, "") {
		t.Fatal("super_admin should exclude assignments")
	}
}

func TestProcessDocumentMigratesCompatibleVersion(t *testing.T) {
	body := strings.Replace(testDocument, `"version": "1.1.0"`, `"version": "1.0.0"`, 1)
	res := ProcessDocument(decodeDocument(t, body))
	if !res.OK {
		t.Fatalf("compatible version should load, got errors: %v", res.Errors)
	}
	if res.Version != CurrentVersion {
		t.Fatalf("migrated version = %q, want %q", res.Version, CurrentVersion)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "migrated") {
		t.Fatalf("expected a migration warning, got %v", res.Warnings)
	}
	if !res.Matrix.Allows(RoleAdmin, ResourceUsers, ActionCreate, "") {
		t.Fatal("migrated matrix lost grants")
	}
}

func TestProcessDocumentUnsupportedVersion(t *testing.T) {
	body := strings.Replace(testDocument, `"version": "1.1.0"`, `"version": "2.0.0"`, 1)
	res := ProcessDocument(decodeDocument(t, body))
	if res.OK {
		t.Fatal("unsupported version must be rejected")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "unsupported document version") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestProcessDocumentNotAnObject(t *testing.T) {
	for _, raw := range []any{nil, "matrix", []any{1, 2}, 7.5} {
		res := ProcessDocument(raw)
		if res.OK {
			t.Fatalf("non-object document %v accepted", raw)
		}
	}
}

func TestProcessDocumentCollectsEnvelopeErrors(t *testing.T) {
	res := ProcessDocument(map[string]any{})
	if res.OK {
		t.Fatal("empty document accepted")
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected all envelope errors at once, got %v", res.Errors)
	}
}

func TestProcessDocumentBadUpdatedAt(t *testing.T) {
	body := strings.Replace(testDocument, "2026-01-15T10:00:00Z", "yesterday", 1)
	res := ProcessDocument(decodeDocument(t, body))
	if res.OK {
		t.Fatal("malformed updatedAt accepted")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "RFC 3339") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestProcessDocumentUnknownEnums(t *testing.T) {
	body := `{
	  "version": "1.1.0",
	  "updatedAt": "2026-01-15T10:00:00Z",
	  "permissions": {
	    "superuser": {"users": ["read"]},
	    "admin": {
	      "groups": {"sites": [], "schools": [], "classes": [], "cohorts": [], "districts": []},
	      "admins": {"site_admin": [], "admin": [], "research_assistant": []},
	      "assignments": ["read", "approve"],
	      "users": [],
	      "tasks": [],
	      "reports": ["read"]
	    }
	  }
	}`
	res := ProcessDocument(decodeDocument(t, body))
	if res.OK {
		t.Fatal("document with unknown enums accepted")
	}
	joined := strings.Join(res.Errors, "\n")
	for _, want := range []string{
		`unknown role "superuser"`,
		`unknown sub-resource "districts"`,
		`unknown action approve`,
		`unknown resource "reports"`,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing error %q in %v", want, res.Errors)
		}
	}
}

func TestProcessDocumentNormalizesMissingSubResources(t *testing.T) {
	body := strings.Replace(testDocument, `"classes": [], `, "", 1)
	res := ProcessDocument(decodeDocument(t, body))
	if !res.OK {
		t.Fatalf("sparse nested grant should load, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], `missing sub-resource "classes"`) {
		t.Fatalf("expected a normalization warning, got %v", res.Warnings)
	}
	if res.Matrix.Allows(RoleParticipant, ResourceGroups, ActionRead, SubResourceClasses) {
		t.Fatal("omitted sub-resource must normalize to no access")
	}
	if !res.Matrix.Allows(RoleAdmin, ResourceGroups, ActionRead, SubResourceClasses) {
		t.Fatal("normalization touched a role that supplied the sub-resource")
	}
}

func TestProcessDocumentSparseNestedGrant(t *testing.T) {
	body := `{
	  "version": "1.1.0",
	  "updatedAt": "2026-01-15T10:00:00Z",
	  "permissions": {
	    "admin": {
	      "groups": {"schools": ["read", "update"]},
	      "users": ["create", "read"]
	    }
	  }
	}`
	res := ProcessDocument(decodeDocument(t, body))
	if !res.OK {
		t.Fatalf("sparse document should load, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 3 {
		t.Fatalf("expected one warning per omitted sub-resource, got %v", res.Warnings)
	}
	if !res.Matrix.Allows(RoleAdmin, ResourceGroups, ActionUpdate, SubResourceSchools) {
		t.Fatal("supplied sub-resource grant lost")
	}
	for _, sub := range []SubResource{SubResourceSites, SubResourceClasses, SubResourceCohorts} {
		if res.Matrix.Allows(RoleAdmin, ResourceGroups, ActionRead, sub) {
			t.Fatalf("omitted sub-resource %s granted access", sub)
		}
	}
}
