package service

import (
	"task-service/internal/apperr"
	"task-service/internal/policy"
)

// denied maps a policy decision to the taxonomy for collection-level checks,
// where revealing that the operation exists is fine.
func denied(d policy.Decision) error {
	if d.Reason == policy.ReasonUnauthenticated {
		return apperr.ErrUnauthenticated
	}
	return apperr.ErrForbidden
}

// conceal maps a policy decision for object-level checks. An unauthorized
// caller must not learn whether the object exists, so a deny is reported as
// not-found. Unauthenticated callers still get the authentication error;
// they learned nothing they could not have guessed.
func conceal(d policy.Decision) error {
	if d.Reason == policy.ReasonUnauthenticated {
		return apperr.ErrUnauthenticated
	}
	return apperr.ErrNotFound
}
