// Package services implements the business logic between the HTTP handlers
// and the loaders, calculator and results store.
//
// CPIService loads price and category tables from the configured source,
// runs the calculator or series builder and appends each computed value to
// the results history. Every operation takes a context for cancellation and
// tracing; spans and computation metrics are recorded when a tracer and
// metrics are configured.
//
// HealthService reports liveness, readiness of the results store and build
// information.
package services
