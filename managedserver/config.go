package managedserver

import "time"

const (
	defaultRequestTimeout = 30 * time.Second
)

// HTTPResourceServiceConfig describes one realm-scoped management backend.
type HTTPResourceServiceConfig struct {
	// BaseURL is the backend root, e.g. https://mgmt.example.com/api.
	BaseURL string

	// Realm scopes every resource path.
	Realm string

	// RequestTimeout bounds each remote call. Zero means the default.
	RequestTimeout time.Duration

	// RequestsPerSecond enables client-side pacing when positive. The
	// engine assumes the transport may throttle transparently; this is
	// that throttle.
	RequestsPerSecond float64

	// InsecureSkipTLSVerify disables certificate verification. Intended
	// for lab backends only.
	InsecureSkipTLSVerify bool
}
