package auth

import "strings"

// Site paths.
const (
	PathHome                  = "/"
	PathLogin                 = "/login"
	PathSignup                = "/signup"
	PathLogout                = "/logout"
	PathPasswordReset         = "/password-reset"
	PathPasswordResetDone     = "/password-reset/done"
	PathPasswordResetConfirm  = "/password-reset/confirm"
	PathPasswordResetComplete = "/password-reset/complete"
	PathPasswordResetEmail    = "/password-reset/email-preview"
	PathStudentDashboard      = "/dashboard/student"
	PathTeacherDashboard      = "/dashboard/teacher"
	PathTeacherExamCreate     = "/dashboard/teacher/exams/new"
	PathTeacherExamManage     = "/dashboard/teacher/exams/manage"
	PathAdminDashboard        = "/dashboard/admin"

	DefaultAdminPath = "/admin/"
)

// RouteAccessRule lists the role flags allowed on a protected path.
type RouteAccessRule struct {
	Path    string
	Allowed []Role
}

var accessRules = []RouteAccessRule{
	{Path: PathStudentDashboard, Allowed: []Role{RoleStudent, RoleAdmin}},
	{Path: PathTeacherDashboard, Allowed: []Role{RoleTeacher, RoleAdmin}},
	{Path: PathTeacherExamCreate, Allowed: []Role{RoleTeacher, RoleAdmin}},
	{Path: PathTeacherExamManage, Allowed: []Role{RoleTeacher, RoleAdmin}},
	{Path: PathAdminDashboard, Allowed: []Role{RoleAdmin}},
}

// Routes answers routing questions: dashboards, external paths and access.
// It is read-only once built.
type Routes struct {
	adminPath string
	rules     map[string][]Role
}

// NewRoutes builds the routing table with the admin portal path normalized.
func NewRoutes(adminPath string) *Routes {
	rules := make(map[string][]Role, len(accessRules))
	for _, rule := range accessRules {
		rules[rule.Path] = rule.Allowed
	}
	return &Routes{adminPath: NormalizeAdminPath(adminPath), rules: rules}
}

// NormalizeAdminPath makes absolute URLs end with a single "/" and forces
// relative paths to start and end with "/". An empty path yields "/admin/".
func NormalizeAdminPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultAdminPath
	}
	if isAbsoluteURL(path) {
		return strings.TrimRight(path, "/") + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

func isAbsoluteURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// AdminPath is the normalized admin portal path.
func (r *Routes) AdminPath() string { return r.adminPath }

// DashboardPath picks the dashboard of id by role priority; nil goes home.
func (r *Routes) DashboardPath(id *Identity) string {
	switch {
	case id == nil:
		return PathHome
	case id.Roles.Admin:
		return r.adminPath
	case id.Roles.Teacher:
		return PathTeacherDashboard
	case id.Roles.Student:
		return PathStudentDashboard
	}
	return PathHome
}

// IsExternal reports whether path must be reached by a full page load.
func (r *Routes) IsExternal(path string) bool {
	if path == "" {
		return false
	}
	if isAbsoluteURL(path) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(path), strings.ToLower(r.adminPath))
}

// IsProtected reports whether path has an access rule.
func (r *Routes) IsProtected(path string) bool {
	_, ok := r.rules[path]
	return ok
}

// CanAccess reports whether id may view path. Unmapped paths are public.
func (r *Routes) CanAccess(path string, id *Identity) bool {
	allowed, ok := r.rules[path]
	if !ok {
		return true
	}
	if id == nil {
		return false
	}
	return id.Roles.HasAny(allowed...)
}

// PostAuthDestination is where a freshly authenticated id lands: the path it
// was bounced from when it may view it, its dashboard otherwise.
func (r *Routes) PostAuthDestination(from string, id *Identity) string {
	if from != "" && r.CanAccess(from, id) {
		return from
	}
	return r.DashboardPath(id)
}
