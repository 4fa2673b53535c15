package ports

import "context"

// HealthChecker is one readiness dependency: a storage backend, the SQL
// database behind it, or the row store's circuit breaker.
type HealthChecker interface {
	// Name is the key under which the result is reported, such as "store"
	// or "row-store".
	Name() string

	// HealthCheck returns nil while the dependency can serve requests and
	// must give up when ctx ends.
	HealthCheck(ctx context.Context) error
}

// HealthRegistry answers the readiness probe from its registered checkers.
type HealthRegistry interface {
	// Register adds checker, replacing any checker with the same name.
	Register(checker HealthChecker)

	// CheckAll maps each checker name to its result; nil is healthy.
	CheckAll(ctx context.Context) map[string]error
}
