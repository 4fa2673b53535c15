package acl

import "context"

// Name returns the identifier used when this component is registered with a
// health registry.
func (s *RowStore) Name() string {
	return "row-store"
}

// HealthCheck reports the row store's availability from the client's
// circuit breaker state; no network call is made.
//
// This reports downstream status, not service readiness. Tying readiness
// to the row store would keep the breaker from ever seeing traffic again.
func (s *RowStore) HealthCheck(ctx context.Context) error {
	return s.req.client.HealthCheck(ctx)
}
