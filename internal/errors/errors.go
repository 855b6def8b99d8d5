package errors

import (
	"errors"
	"fmt"
)

// ErrResourceGone is returned by the GitHub client when the remote answers a
// single-item lookup with 404 Not Found or 410 Gone.
var ErrResourceGone = errors.New("resource not found or gone")

// ConfigError is returned when a configuration value fails validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// QuotaCheckError is returned when the remaining API quota could not be read.
// The run cannot safely guess the quota, so callers treat it as fatal.
type QuotaCheckError struct {
	Err error
}

func (e *QuotaCheckError) Error() string {
	return fmt.Sprintf("check rate limit: %v", e.Err)
}

func (e *QuotaCheckError) Unwrap() error { return e.Err }

// RepoSyncError records the repository and stage at which a sync or sweep
// pass was aborted.
type RepoSyncError struct {
	Org   string
	Repo  string
	Stage string
	Err   error
}

func (e *RepoSyncError) Error() string {
	return fmt.Sprintf("sync %s/%s failed in %s: %v", e.Org, e.Repo, e.Stage, e.Err)
}

func (e *RepoSyncError) Unwrap() error { return e.Err }
