package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthRegister = "/api/auth/register"
	RouteAuthLogin    = "/api/auth/login"
	RouteAuthRenew    = "/api/auth/renew"

	// Event Routes
	RouteEvents = "/api/events"
	RouteEvent  = "/api/events/{id}"

	// System Routes
	RouteHealth = "/api/health"
)
