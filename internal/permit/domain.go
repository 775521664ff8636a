// Package permit evaluates per-site role assignments against a versioned
// permission matrix. It is the in-process authorization core shared by the
// HTTP tier; all state is supplied by the caller at load time and held in
// memory.
package permit

// Role is a position in the privilege hierarchy. The order of the
// declarations below is significant: it defines the total order used for
// minimum-role comparisons.
type Role string

const (
	RoleParticipant       Role = "participant"
	RoleResearchAssistant Role = "research_assistant"
	RoleAdmin             Role = "admin"
	RoleSiteAdmin         Role = "site_admin"
	RoleSuperAdmin        Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleParticipant:       0,
	RoleResearchAssistant: 1,
	RoleAdmin:             2,
	RoleSiteAdmin:         3,
	RoleSuperAdmin:        4,
}

// Roles returns the known roles in hierarchy order.
func Roles() []Role {
	return []Role{RoleParticipant, RoleResearchAssistant, RoleAdmin, RoleSiteAdmin, RoleSuperAdmin}
}

// Valid reports whether the role belongs to the known hierarchy.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the hierarchy. A role
// missing from the hierarchy fails the comparison on either side.
func (r Role) AtLeast(min Role) bool {
	ri, ok := roleRank[r]
	if !ok {
		return false
	}
	mi, ok := roleRank[min]
	if !ok {
		return false
	}
	return ri >= mi
}

// Resource identifies a protected surface. Flat resources map a role to a
// plain action set; nested resources subdivide by sub-resource first.
type Resource string

const (
	ResourceGroups      Resource = "groups"
	ResourceAssignments Resource = "assignments"
	ResourceUsers       Resource = "users"
	ResourceAdmins      Resource = "admins"
	ResourceTasks       Resource = "tasks"
)

// SubResource is the second-level key under a nested resource.
type SubResource string

const (
	SubResourceSites   SubResource = "sites"
	SubResourceSchools SubResource = "schools"
	SubResourceClasses SubResource = "classes"
	SubResourceCohorts SubResource = "cohorts"

	SubResourceSiteAdmin         SubResource = "site_admin"
	SubResourceAdmin             SubResource = "admin"
	SubResourceResearchAssistant SubResource = "research_assistant"
)

var nestedSubResources = map[Resource][]SubResource{
	ResourceGroups: {SubResourceSites, SubResourceSchools, SubResourceClasses, SubResourceCohorts},
	ResourceAdmins: {SubResourceSiteAdmin, SubResourceAdmin, SubResourceResearchAssistant},
}

// Resources returns the known resources in declaration order.
func Resources() []Resource {
	return []Resource{ResourceGroups, ResourceAssignments, ResourceUsers, ResourceAdmins, ResourceTasks}
}

// Valid reports whether the resource belongs to the known set.
func (r Resource) Valid() bool {
	switch r {
	case ResourceGroups, ResourceAssignments, ResourceUsers, ResourceAdmins, ResourceTasks:
		return true
	}
	return false
}

// Nested reports whether the resource requires a sub-resource on lookup.
func (r Resource) Nested() bool {
	_, ok := nestedSubResources[r]
	return ok
}

// SubResources returns the sub-resources of a nested resource in
// declaration order, or nil for flat resources.
func (r Resource) SubResources() []SubResource {
	return nestedSubResources[r]
}

// ValidSub reports whether sub belongs to the resource's sub-resource set.
func (r Resource) ValidSub(sub SubResource) bool {
	for _, s := range nestedSubResources[r] {
		if s == sub {
			return true
		}
	}
	return false
}

// Action is one of the fixed operations a role may hold on a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExclude Action = "exclude"
)

// Actions returns the known actions in declaration order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExclude}
}

// Valid reports whether the action belongs to the known set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExclude:
		return true
	}
	return false
}

// RoleAssignment pairs a site with the role the user holds there.
type RoleAssignment struct {
	SiteID string `json:"siteId"`
	Role   Role   `json:"role"`
}

// User carries the identity and per-site role assignments supplied by the
// caller on every check. The engine never mutates or retains it.
type User struct {
	UID   string           `json:"uid"`
	Email string           `json:"email"`
	Roles []RoleAssignment `json:"roles"`
}

// IsSuperAdmin reports whether any assignment grants super_admin. A
// super_admin assignment on any site makes the user a super admin globally.
func (u *User) IsSuperAdmin() bool {
	for _, ra := range u.Roles {
		if ra.Role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// Decision classifies a check outcome for audit purposes.
type Decision string

const (
	DecisionAllow         Decision = "allow"
	DecisionDeny          Decision = "deny"
	DecisionIndeterminate Decision = "indeterminate"
)

// Reason explains a decision. Each evaluation branch maps to exactly one
// reason code.
type Reason string

const (
	ReasonNotLoaded           Reason = "NOT_LOADED"
	ReasonMissingParams       Reason = "MISSING_PARAMS"
	ReasonRequiresSubResource Reason = "REQUIRES_SUBRESOURCE"
	ReasonInvalidSubResource  Reason = "INVALID_SUBRESOURCE"
	ReasonNoRole              Reason = "NO_ROLE"
	ReasonNotAllowed          Reason = "NOT_ALLOWED"
	ReasonAllowed             Reason = "ALLOWED"
)

// Decision maps the reason to its decision class.
func (r Reason) Decision() Decision {
	switch r {
	case ReasonAllowed:
		return DecisionAllow
	case ReasonNotAllowed, ReasonNoRole:
		return DecisionDeny
	default:
		return DecisionIndeterminate
	}
}

// LogMode controls decision-event emission.
type LogMode string

const (
	LogModeOff      LogMode = "off"
	LogModeBaseline LogMode = "baseline"
	LogModeDebug    LogMode = "debug"
)

// ParseLogMode maps a configuration string to a LogMode. Anything
// unrecognized, including the empty string, is off: logging is never
// enabled by accident.
func ParseLogMode(value string) LogMode {
	switch LogMode(value) {
	case LogModeBaseline:
		return LogModeBaseline
	case LogModeDebug:
		return LogModeDebug
	default:
		return LogModeOff
	}
}
