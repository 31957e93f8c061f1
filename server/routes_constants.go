package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth Routes - login flow
	RouteOAuthStart    = "/oauth/{provider}/start"
	RouteOAuthCallback = "/oauth/{provider}/callback"

	// Auth Routes - session
	RouteAuthSession = "/auth/session"
	RouteAuthLogout  = "/auth/logout"

	// Resource Routes - proxied tracker reads
	RouteResourceProjects = "/resource/projects"
	RouteResourceIssues   = "/resource/issues"
	RouteResourceIssue    = "/resource/issues/{issueKey}"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
