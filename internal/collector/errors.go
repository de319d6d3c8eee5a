package collector

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-collector-service/internal/client"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

// Kind classifies why a collection cycle failed.
type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderRejected    Kind = "provider_rejected"
	KindMissingCredential   Kind = "missing_credential"
	KindStorageFailure      Kind = "storage_failure"
)

// CollectionError is returned by every failed collection. Message names the
// city and the underlying cause; Err keeps the cause for errors.Is.
type CollectionError struct {
	Kind    Kind
	City    string
	Message string
	Err     error
}

func (e *CollectionError) Error() string {
	return e.Message
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

func newCollectionError(city string, err error) *CollectionError {
	return &CollectionError{
		Kind:    kindOf(err),
		City:    city,
		Message: fmt.Sprintf("error collecting weather data for %s: %v", city, err),
		Err:     err,
	}
}

// kindOf maps a provider or storage error to its Kind. Anything unrecognized,
// including caller cancellation, counts as the provider being unavailable.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, client.ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, storage.ErrStorageFailure):
		return KindStorageFailure
	case errors.Is(err, client.ErrProviderRejected):
		return KindProviderRejected
	default:
		return KindProviderUnavailable
	}
}
