package permit

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// CurrentVersion is the permission document version this build evaluates.
const CurrentVersion = "1.1.0"

var (
	supportedVersions  = []string{"1.1.0"}
	compatibleVersions = []string{"1.0.0", "1.1.0"}
)

// migrations transforms a compatible document's permissions object up to
// the current version. The 1.0.0 entry is an identity transform: the shape
// never changed, only the envelope version did. Future versions register
// real transforms here.
var migrations = map[string]func(map[string]any) map[string]any{
	"1.0.0": func(perms map[string]any) map[string]any { return perms },
}

// ProcessResult is the outcome of validating (and possibly migrating) an
// externally supplied permission document.
type ProcessResult struct {
	OK       bool
	Matrix   Matrix
	Version  string
	Errors   []string
	Warnings []string
}

// ProcessDocument validates a decoded permission document and yields a
// trusted matrix. It is purely functional: all structural errors are
// collected rather than returned one at a time, and the caller decides
// what to do with a failed result.
func ProcessDocument(raw any) ProcessResult {
	var res ProcessResult

	doc, ok := raw.(map[string]any)
	if !ok || doc == nil {
		res.Errors = append(res.Errors, "document must be a JSON object")
		return res
	}

	perms, permsOK := doc["permissions"].(map[string]any)
	if !permsOK {
		res.Errors = append(res.Errors, "document missing permissions object")
	}
	version, versionOK := doc["version"].(string)
	if !versionOK || version == "" {
		res.Errors = append(res.Errors, "document missing version string")
	}
	updatedAt, updatedOK := doc["updatedAt"].(string)
	if !updatedOK || updatedAt == "" {
		res.Errors = append(res.Errors, "document missing updatedAt timestamp")
	} else if _, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("updatedAt %q is not a valid RFC 3339 timestamp", updatedAt))
	}

	if versionOK && version != "" && !slices.Contains(supportedVersions, version) {
		if slices.Contains(compatibleVersions, version) {
			if permsOK {
				perms = migrations[version](perms)
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("document version %s migrated to %s", version, CurrentVersion))
			version = CurrentVersion
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"unsupported document version %q (supported versions: %s)",
				version, strings.Join(supportedVersions, ", ")))
		}
	}

	if len(res.Errors) > 0 {
		return res
	}

	matrix, warns, errs := buildMatrix(perms)
	res.Warnings = append(res.Warnings, warns...)
	if len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		return res
	}

	res.OK = true
	res.Matrix = matrix
	res.Version = version
	return res
}

// buildMatrix converts the raw permissions object into a typed Matrix,
// collecting every enum violation along the way.
func buildMatrix(perms map[string]any) (Matrix, []string, []string) {
	matrix := make(Matrix, len(perms))
	var warns, errs []string

	for roleKey, rawGrants := range perms {
		role := Role(roleKey)
		if !role.Valid() {
			errs = append(errs, fmt.Sprintf("unknown role %q", roleKey))
			continue
		}
		grantsObj, ok := rawGrants.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("permissions for role %q must be an object", roleKey))
			continue
		}

		grants := make(map[Resource]Grant, len(grantsObj))
		for resKey, rawGrant := range grantsObj {
			res := Resource(resKey)
			if !res.Valid() {
				errs = append(errs, fmt.Sprintf("unknown resource %q under role %q", resKey, roleKey))
				continue
			}
			if res.Nested() {
				grant, grantWarns, grantErrs := buildNestedGrant(role, res, rawGrant)
				warns = append(warns, grantWarns...)
				errs = append(errs, grantErrs...)
				if len(grantErrs) == 0 {
					grants[res] = grant
				}
				continue
			}
			set, setErrs := buildActionSet(rawGrant, fmt.Sprintf("resource %q under role %q", resKey, roleKey))
			errs = append(errs, setErrs...)
			if len(setErrs) == 0 {
				grants[res] = Grant{Actions: set}
			}
		}
		matrix[role] = grants
	}

	if len(errs) > 0 {
		return nil, warns, errs
	}
	return matrix, warns, nil
}

func buildNestedGrant(role Role, res Resource, raw any) (Grant, []string, []string) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Grant{}, nil, []string{fmt.Sprintf("nested resource %q under role %q must be an object keyed by sub-resource", res, role)}
	}

	var warns, errs []string
	sub := make(map[SubResource]ActionSet, len(obj))
	for subKey, rawActions := range obj {
		if !res.ValidSub(SubResource(subKey)) {
			errs = append(errs, fmt.Sprintf("unknown sub-resource %q for resource %q under role %q", subKey, res, role))
			continue
		}
		set, setErrs := buildActionSet(rawActions, fmt.Sprintf("sub-resource %q of %q under role %q", subKey, res, role))
		if len(setErrs) > 0 {
			errs = append(errs, setErrs...)
			continue
		}
		sub[SubResource(subKey)] = set
	}

	// Sparse documents are normal: an omitted sub-resource means no access
	// and is normalized to an empty action set, with a warning so authors
	// can tell omission from intent.
	for _, required := range res.SubResources() {
		if _, ok := sub[required]; !ok {
			if _, supplied := obj[string(required)]; !supplied {
				sub[required] = ActionSet{}
				warns = append(warns, fmt.Sprintf("resource %q under role %q missing sub-resource %q, defaulting to no access", res, role, required))
			}
		}
	}

	if len(errs) > 0 {
		return Grant{}, warns, errs
	}
	return Grant{Sub: sub}, warns, nil
}

func buildActionSet(raw any, context string) (ActionSet, []string) {
	list, ok := raw.([]any)
	if !ok {
		return nil, []string{fmt.Sprintf("%s must be an array of actions", context)}
	}
	var errs []string
	set := make(ActionSet, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok || !Action(name).Valid() {
			errs = append(errs, fmt.Sprintf("unknown action %v in %s", item, context))
			continue
		}
		set[Action(name)] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return set, nil
}
