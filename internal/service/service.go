// Package service holds the business rules between the HTTP handlers and
// the repositories. Services take and return plain Go values and domain
// errors from apperror; they know nothing about HTTP.
package service

// Pagination and size limits shared by the services.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	MaxSubmissionTextLength = 50000
	MaxCodeLength           = 100000 // ~100KB
	MinPasswordLength       = 8
)

// clampPage keeps limit within 1..MaxListLimit and offset non-negative.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
