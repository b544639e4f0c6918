package chatapi

import (
	"errors"
	"fmt"

	goa "goa.design/goa/v3/pkg"
)

// Error kind names, each mapped to a stable goa.ServiceError.Name so the
// HTTP layer can translate it to a status code in one place (spec.md §7).
const (
	KindValidation           = "validation_error"
	KindAuthn                = "authn_error"
	KindAuthz                = "authz_error"
	KindNotFound             = "not_found"
	KindPolicyViolation      = "policy_violation"
	KindQuotaExceeded        = "quota_exceeded"
	KindTransportUnavailable = "transport_unavailable"
	KindInternal             = "internal"
)

// Validation builds a user-visible validation_error.
func Validation(field, detail string) *goa.ServiceError {
	return goa.NewServiceError(fmt.Errorf("%s: %s", field, detail), KindValidation, false, false, false)
}

// Authn builds an authn_error.
func Authn(detail string) *goa.ServiceError {
	return goa.NewServiceError(errors.New(detail), KindAuthn, false, false, false)
}

// Authz builds an authz_error.
func Authz(detail string) *goa.ServiceError {
	return goa.NewServiceError(errors.New(detail), KindAuthz, false, false, false)
}

// NotFound builds a not_found error for the named resource.
func NotFound(resource, id string) *goa.ServiceError {
	return goa.NewServiceError(fmt.Errorf("%s %q not found", resource, id), KindNotFound, false, false, false)
}

// PolicyViolation builds a generic, user-safe policy_violation error — the
// actual classifier reason is recorded on the SecurityEvent, never echoed
// back to the caller.
func PolicyViolation() *goa.ServiceError {
	return goa.NewServiceError(errors.New("message could not be processed"), KindPolicyViolation, false, false, false)
}

// QuotaExceededDetail carries the limit and reset time spec.md §7 requires
// be user-visible alongside a quota_exceeded error.
type QuotaExceededDetail struct {
	Limit   int64
	ResetAt string // RFC3339, next UTC midnight
}

// QuotaExceeded builds a quota_exceeded error.
func QuotaExceeded(d QuotaExceededDetail) *goa.ServiceError {
	err := fmt.Errorf("daily quota of %d exceeded, resets at %s", d.Limit, d.ResetAt)
	return goa.NewServiceError(err, KindQuotaExceeded, false, false, false)
}

// TransportUnavailable builds a transport_unavailable error, surfaced after
// the caller's single admission retry has also failed.
func TransportUnavailable(detail string) *goa.ServiceError {
	return goa.NewServiceError(errors.New(detail), KindTransportUnavailable, false, true, false)
}

// Internal builds an opaque internal error; the original cause is logged,
// never echoed to the caller.
func Internal(cause error) *goa.ServiceError {
	return goa.NewServiceError(errors.New("internal error"), KindInternal, false, false, true)
}
