// Package app wires the index service together: configuration, logging,
// telemetry, the price data source, the results store, services and the
// HTTP router.
//
// # Initialization Flow
//
//	1. Initialize the JSON logger from the logging section
//	2. Initialize OpenTelemetry and create the application metrics
//	3. Open the configured source (file, database, warehouse or bucket)
//	4. Open the results store (memory or redis)
//	5. Build services, handlers and the middleware chain
//
// # Usage
//
//	cfg, err := config.Load("")
//	...
//	application, err := app.NewApplication(ctx, cfg, nil)
//	...
//	return application.Run()
//
// Run serves until SIGINT or SIGTERM, then shuts the server down and closes
// the source, the store and the telemetry providers. Errors are returned to
// the caller; the package never calls os.Exit.
package app
