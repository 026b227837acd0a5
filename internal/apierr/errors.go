// Package apierr defines the error taxonomy shared by the gateway components.
//
// Every error except ParseError propagates to the caller of the gateway. ParseError
// is recovered locally by the stream decoders and only shows up in debug logs.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports a provider call that cannot be attempted because a
// required setting (base URL, API key, model, messages) is missing.
type ConfigurationError struct {
	Label string
	Field string
	// Message replaces the "is required" text when the setting is present but unusable.
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Label, e.Message)
	}
	if e.Label == "" {
		return fmt.Sprintf("configuration error: %s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s is required", e.Label, e.Field)
}

// UpstreamError reports a non-2xx status or a malformed provider response.
type UpstreamError struct {
	Label   string
	Status  int
	Body    string
	Message string
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s %d: %s", e.Label, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s %d", e.Label, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Label, e.Message)
	}
}

// TimeoutError reports that the wall-clock deadline of a call expired.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s: timed out after %s", e.Label, e.Timeout)
	}
	return fmt.Sprintf("%s: timed out", e.Label)
}

// CancelledError reports that the caller cancelled the call.
type CancelledError struct {
	Label string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: request cancelled", e.Label)
}

// RoutingDisabledError is the policy rejection for endpoints routed with mode "disabled".
type RoutingDisabledError struct {
	Endpoint string
}

func (e *RoutingDisabledError) Error() string {
	return fmt.Sprintf("byok disabled endpoint: %s", e.Endpoint)
}

// RequestError reports an inbound request body that could not be decoded.
type RequestError struct {
	Endpoint string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request body for %s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError is a malformed stream event. Decoders skip the event and continue.
type ParseError struct {
	Label string
	Data  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed stream event: %v", e.Label, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var target *CancelledError
	return errors.As(err, &target)
}

// IsRoutingDisabled reports whether err is a RoutingDisabledError.
func IsRoutingDisabled(err error) bool {
	var target *RoutingDisabledError
	return errors.As(err, &target)
}

// IsRequest reports whether err is a RequestError.
func IsRequest(err error) bool {
	var target *RequestError
	return errors.As(err, &target)
}
