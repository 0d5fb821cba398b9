// Package repository persists the allocation audit trail.  Charts themselves
// live only in memory for the length of a session; this package records the
// requests made against them.
package repository

import "errors"

// ErrNotConfigured is returned when a repository is used without a database
// handle.  Handlers treat it as "audit trail disabled".
var ErrNotConfigured = errors.New("repository not configured")
