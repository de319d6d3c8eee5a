package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
)

// ErrorCategory is a stable metric label for a provider failure
// (weatherApiErrorsTotal).
type ErrorCategory string

const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryNotConfigured    ErrorCategory = "not_configured"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUpstreamRejected ErrorCategory = "upstream_rejected"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// sentinelCategories is checked in order; the most specific sentinel comes
// before the family sentinel it is wrapped with.
var sentinelCategories = []struct {
	err      error
	category ErrorCategory
}{
	{context.DeadlineExceeded, ErrorCategoryTimeout},
	{context.Canceled, ErrorCategoryTimeout},
	{ErrMissingCredential, ErrorCategoryNotConfigured},
	{ErrInvalidAPIKey, ErrorCategoryInvalidAPIKey},
	{ErrLocationNotFound, ErrorCategoryLocationNotFound},
	{ErrRateLimited, ErrorCategoryRateLimited},
}

// CategorizeError maps an error to a stable ErrorCategory. nil maps to "".
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	for _, sc := range sentinelCategories {
		if errors.Is(err, sc.err) {
			return sc.category
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorCategoryParsing
	}

	switch {
	case errors.Is(err, ErrProviderUnavailable):
		return ErrorCategoryNetwork
	case errors.Is(err, ErrProviderRejected):
		return ErrorCategoryUpstreamRejected
	default:
		return ErrorCategoryUnknown
	}
}
