package permit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/atlas-edu/permitd/internal/platform/cache"
)

// snapshot bundles the state that must flip together on load so that
// in-flight checks never observe a half-updated matrix.
type snapshot struct {
	matrix  Matrix
	version string
	loaded  bool
}

// Config carries the optional collaborators of an Engine.
type Config struct {
	// Cache memoizes check results. Nil disables memoization.
	Cache *cache.TTL[any]
	// Sink receives decision events while logging is active.
	Sink DecisionSink
	// Mode defaults to off; decision events are never enabled by accident.
	Mode LogMode
	// Environment labels emitted events, e.g. "server".
	Environment string
}

// Engine evaluates checks against the currently loaded permission matrix.
// It is safe for concurrent use: the matrix snapshot swaps atomically and
// the cache carries its own lock.
type Engine struct {
	log   *slog.Logger
	cache *cache.TTL[any]
	sink  DecisionSink
	mode  LogMode
	env   string

	snap atomic.Pointer[snapshot]
}

// New constructs an unloaded Engine. Every check fails closed until the
// first successful LoadPermissions.
func New(log *slog.Logger, cfg Config) *Engine {
	if log == nil {
		log = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NoopSink{}
	}
	env := cfg.Environment
	if env == "" {
		env = "server"
	}
	return &Engine{
		log:   log,
		cache: cfg.Cache,
		sink:  sink,
		mode:  cfg.Mode,
		env:   env,
	}
}

// LoadResult reports the outcome of a load attempt.
type LoadResult struct {
	Success  bool     `json:"success"`
	Version  string   `json:"version,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// LoadPermissions validates the decoded document and, on success, swaps in
// the new matrix and clears the cache. A failed load leaves the previous
// state untouched: the engine keeps answering from the old matrix, or
// stays unloaded if there never was one.
func (e *Engine) LoadPermissions(raw any) LoadResult {
	res := ProcessDocument(raw)
	if !res.OK {
		e.log.Warn("permission document rejected",
			slog.Int("errors", len(res.Errors)),
			slog.String("version", res.Version))
		return LoadResult{Success: false, Errors: res.Errors, Warnings: res.Warnings}
	}

	e.snap.Store(&snapshot{matrix: res.Matrix, version: res.Version, loaded: true})
	if e.cache != nil {
		e.cache.Clear()
	}
	e.log.Info("permission matrix loaded", slog.String("version", res.Version))
	return LoadResult{Success: true, Version: res.Version, Warnings: res.Warnings}
}

// IsLoaded reports whether a matrix has been loaded.
func (e *Engine) IsLoaded() bool {
	snap := e.snap.Load()
	return snap != nil && snap.loaded
}

// Version returns the loaded matrix version, or "" when unloaded.
func (e *Engine) Version() string {
	snap := e.snap.Load()
	if snap == nil {
		return ""
	}
	return snap.version
}

// UserSiteRole resolves the user's effective role at a site. A super_admin
// assignment anywhere wins unconditionally; otherwise the first assignment
// matching the site applies.
func (e *Engine) UserSiteRole(user *User, siteID string) (Role, bool) {
	if user.IsSuperAdmin() {
		return RoleSuperAdmin, true
	}
	for _, ra := range user.Roles {
		if ra.SiteID == siteID {
			return ra.Role, true
		}
	}
	return "", false
}

// HasMinimumRole reports whether userRole sits at or above required in the
// hierarchy. Either role missing from the hierarchy fails the comparison.
func (e *Engine) HasMinimumRole(userRole, required Role) bool {
	return userRole.AtLeast(required)
}

// CanPerformGlobalAction checks an unscoped action. Only super admins can
// hold global permissions; everyone else is denied.
func (e *Engine) CanPerformGlobalAction(ctx context.Context, user *User, res Resource, action Action, sub SubResource) bool {
	allowed, reason := e.evalGlobal(user, res, action, sub)
	e.emit(ctx, user, GlobalSite, res, action, sub, reason)
	return allowed
}

// CanPerformSiteAction checks an action scoped to one site. Super admins
// delegate entirely to the global check: the site is irrelevant to them.
func (e *Engine) CanPerformSiteAction(ctx context.Context, user *User, siteID string, res Resource, action Action, sub SubResource) bool {
	allowed, reason, global := e.evalSite(user, siteID, res, action, sub)
	if global {
		e.emit(ctx, user, GlobalSite, res, action, sub, reason)
	} else {
		e.emit(ctx, user, siteID, res, action, sub, reason)
	}
	return allowed
}

// SitesWithMinRole returns the ids of the sites where the user holds at
// least minRole, preserving assignment order. A super admin gets the
// all-sites sentinel regardless of minRole.
func (e *Engine) SitesWithMinRole(user *User, minRole Role) []string {
	if user.IsSuperAdmin() {
		return []string{GlobalSite}
	}
	var sites []string
	for _, ra := range user.Roles {
		if ra.Role.AtLeast(minRole) {
			sites = append(sites, ra.SiteID)
		}
	}
	return sites
}

// AccessibleResources lists the resources on which the user may perform
// action at the site, in declaration order. Nested resources never pass a
// sub-resource-less check, so only flat resources can appear.
func (e *Engine) AccessibleResources(ctx context.Context, user *User, siteID string, action Action) []Resource {
	var out []Resource
	for _, res := range Resources() {
		if e.CanPerformSiteAction(ctx, user, siteID, res, action, "") {
			out = append(out, res)
		}
	}
	return out
}

// AccessibleGroupSubResources lists the group sub-resources on which the
// user may perform action at the site, in declaration order.
func (e *Engine) AccessibleGroupSubResources(ctx context.Context, user *User, siteID string, action Action) []SubResource {
	return e.accessibleSubResources(ctx, user, siteID, ResourceGroups, action)
}

// AccessibleAdminSubResources lists the admin sub-resources on which the
// user may perform action at the site, in declaration order.
func (e *Engine) AccessibleAdminSubResources(ctx context.Context, user *User, siteID string, action Action) []SubResource {
	return e.accessibleSubResources(ctx, user, siteID, ResourceAdmins, action)
}

func (e *Engine) accessibleSubResources(ctx context.Context, user *User, siteID string, res Resource, action Action) []SubResource {
	var out []SubResource
	for _, sub := range res.SubResources() {
		if e.CanPerformSiteAction(ctx, user, siteID, res, action, sub) {
			out = append(out, sub)
		}
	}
	return out
}

// Check is one entry of a bulk permission check.
type Check struct {
	Resource    Resource    `json:"resource"`
	Action      Action      `json:"action"`
	SubResource SubResource `json:"subResource,omitempty"`
}

func (c Check) logicalKey() string {
	return fmt.Sprintf("%s:%s:%s", c.Resource, c.SubResource, c.Action)
}

// CheckResult pairs a bulk check entry with its outcome.
type CheckResult struct {
	Resource    Resource    `json:"resource"`
	Action      Action      `json:"action"`
	SubResource SubResource `json:"subResource,omitempty"`
	Allowed     bool        `json:"allowed"`
}

// BulkCheck evaluates a batch of site-scoped checks. The whole batch is
// memoized under an order-insensitive hash of the checks, on top of the
// per-check caching each entry gets anyway. Results follow the
// caller-supplied order. An unloaded engine returns all-false results
// without inspecting the inputs.
func (e *Engine) BulkCheck(ctx context.Context, user *User, siteID string, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, c := range checks {
		results[i] = CheckResult{Resource: c.Resource, Action: c.Action, SubResource: c.SubResource}
	}
	if !e.IsLoaded() || user == nil || user.UID == "" {
		return results
	}

	key := bulkCheckKey(user.UID, siteID, checks)
	if cached, ok := e.cacheGet(key); ok {
		if batch, ok := cached.(map[string]bool); ok {
			for i, c := range checks {
				results[i].Allowed = batch[c.logicalKey()]
			}
			return results
		}
	}

	batch := make(map[string]bool, len(checks))
	for i, c := range checks {
		allowed := e.CanPerformSiteAction(ctx, user, siteID, c.Resource, c.Action, c.SubResource)
		results[i].Allowed = allowed
		batch[c.logicalKey()] = allowed
	}
	e.cacheSet(key, batch)
	return results
}

// RolePermissions returns a deep, mutation-safe copy of the role's grants.
// An unloaded engine or unknown role yields an empty map.
func (e *Engine) RolePermissions(role Role) map[Resource]Grant {
	snap := e.snap.Load()
	if snap == nil || !snap.loaded {
		return map[Resource]Grant{}
	}
	return snap.matrix.RoleGrants(role)
}

// RoleHasPermission tests a role directly against the matrix, under the
// same validation rules as the per-user checks.
func (e *Engine) RoleHasPermission(role Role, res Resource, action Action, sub SubResource) bool {
	snap := e.snap.Load()
	if snap == nil || !snap.loaded {
		return false
	}
	if !role.Valid() || !res.Valid() || !action.Valid() {
		return false
	}
	if _, ok := validateSubResource(res, sub); !ok {
		return false
	}
	return snap.matrix.Allows(role, res, action, sub)
}

// ClearUserCache drops the cached results of one user. Intended for the
// host to call after a role mutation.
func (e *Engine) ClearUserCache(uid string) {
	if e.cache != nil {
		e.cache.ClearOwner(uid)
	}
}

// ClearAllCache drops every cached result.
func (e *Engine) ClearAllCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// =============================================================================

// validateSubResource applies the nested/flat gating: nested resources must
// be queried with one of their sub-resources, flat resources with none.
func validateSubResource(res Resource, sub SubResource) (Reason, bool) {
	if res.Nested() {
		if sub == "" {
			return ReasonRequiresSubResource, false
		}
		if !res.ValidSub(sub) {
			return ReasonInvalidSubResource, false
		}
		return "", true
	}
	if sub != "" {
		return ReasonInvalidSubResource, false
	}
	return "", true
}

func (e *Engine) evalGlobal(user *User, res Resource, action Action, sub SubResource) (bool, Reason) {
	snap := e.snap.Load()
	if snap == nil || !snap.loaded {
		return false, ReasonNotLoaded
	}
	if user == nil || user.UID == "" || !res.Valid() || !action.Valid() {
		return false, ReasonMissingParams
	}
	if reason, ok := validateSubResource(res, sub); !ok {
		return false, reason
	}
	if !user.IsSuperAdmin() {
		return false, ReasonNoRole
	}

	key := globalCheckKey(user.UID, res, action, sub)
	if cached, ok := e.cacheGetBool(key); ok {
		return cached, allowReason(cached)
	}
	allowed := snap.matrix.Allows(RoleSuperAdmin, res, action, sub)
	e.cacheSet(key, allowed)
	return allowed, allowReason(allowed)
}

// evalSite returns the outcome, its reason, and whether evaluation was
// delegated to the global path (super admin).
func (e *Engine) evalSite(user *User, siteID string, res Resource, action Action, sub SubResource) (bool, Reason, bool) {
	snap := e.snap.Load()
	if snap == nil || !snap.loaded {
		return false, ReasonNotLoaded, false
	}
	if user == nil || user.UID == "" || siteID == "" || !res.Valid() || !action.Valid() {
		return false, ReasonMissingParams, false
	}
	if reason, ok := validateSubResource(res, sub); !ok {
		return false, reason, false
	}
	if user.IsSuperAdmin() {
		allowed, reason := e.evalGlobal(user, res, action, sub)
		return allowed, reason, true
	}

	key := siteCheckKey(user.UID, siteID, res, action, sub)
	if cached, ok := e.cacheGetBool(key); ok {
		return cached, allowReason(cached), false
	}

	role, ok := e.UserSiteRole(user, siteID)
	if !ok {
		// "No role here" is as stable a fact as an explicit deny.
		e.cacheSet(key, false)
		return false, ReasonNoRole, false
	}
	allowed := snap.matrix.Allows(role, res, action, sub)
	e.cacheSet(key, allowed)
	return allowed, allowReason(allowed), false
}

func allowReason(allowed bool) Reason {
	if allowed {
		return ReasonAllowed
	}
	return ReasonNotAllowed
}

func (e *Engine) cacheGet(key string) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

func (e *Engine) cacheGetBool(key string) (bool, bool) {
	v, ok := e.cacheGet(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (e *Engine) cacheSet(key string, value any) {
	if e.cache != nil {
		e.cache.Set(key, value)
	}
}

// emit forwards a decision event to the sink. Inactive logging skips the
// event work entirely; sink failures are logged and swallowed so that an
// authorization decision can never fail because logging failed.
func (e *Engine) emit(ctx context.Context, user *User, siteID string, res Resource, action Action, sub SubResource, reason Reason) {
	if e.mode == LogModeOff || !e.sink.Enabled() {
		return
	}
	decision := reason.Decision()
	if e.mode == LogModeBaseline && decision == DecisionAllow {
		return
	}

	resourceKey := string(res)
	if sub != "" {
		resourceKey = fmt.Sprintf("%s:%s", res, sub)
	}
	uid := ""
	if user != nil {
		uid = user.UID
	}
	ev := Event{
		Decision:    decision,
		Reason:      reason,
		Action:      action,
		Resource:    res,
		SubResource: sub,
		ResourceKey: resourceKey,
		SiteID:      siteID,
		UserID:      uid,
		Timestamp:   time.Now().UTC(),
		Environment: e.env,
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		e.log.Error("decision event emit", slog.Any("error", err))
	}
}
