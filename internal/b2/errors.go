package b2

import (
	"errors"
	"fmt"
)

var (
	// ErrBucketNotFound indicates no bucket with the requested name is visible to the account.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrMissingSession indicates an API call was attempted before Authorize.
	ErrMissingSession = errors.New("not authorized")
)

// APIError is a non-success response from the B2 API.
type APIError struct {
	// Op is the API call that failed, e.g. "b2_list_buckets".
	Op string

	// Status is the HTTP status code.
	Status int

	// Code and Message are taken from the B2 error body, when present.
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// IsBucketNotFound returns true if the error indicates the bucket could not be resolved.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

type errorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
