// Package handlers contains health checks and reusable HTTP middleware for
// the placement engine API.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddDetailedCheck("database", conn.CheckHealth)
//	checker.AddOptionalCheck("cache", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Middleware
//
//	handler := handlers.ChainHandler(
//	    mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
//
// Middleware listed first runs first.
package handlers
