// Package common defines shared sentinel errors used across the watcher's
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Delivery errors. ErrPermanentDelivery marks a webhook rejection that
	// must not be retried (4xx other than 429).
	ErrPermanentDelivery = errors.New("permanent delivery failure")

	// Upstream errors. ErrTransientUpstream covers network failures and
	// 5xx responses that exhausted their in-cycle retries.
	ErrTransientUpstream = errors.New("transient upstream failure")
)
