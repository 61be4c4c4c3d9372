package errors

import (
	stdErrors "errors"
	"fmt"
)

// Operation identifies the reconciliation stage producing a contextual error.
type Operation string

const (
	// OperationRegistry denotes host registry construction.
	OperationRegistry Operation = "backup.registry"
	// OperationDiscover denotes repository discovery across hosts.
	OperationDiscover Operation = "backup.discover"
	// OperationResolve denotes authoritative source election.
	OperationResolve Operation = "backup.resolve"
	// OperationReconcile denotes backup creation, relabeling and pushing.
	OperationReconcile Operation = "backup.reconcile"
	// OperationScrub denotes orphaned backup removal.
	OperationScrub Operation = "backup.scrub"
)

// Sentinel describes a stable error code shared across stages.
type Sentinel string

// Error returns the sentinel code string.
func (sentinel Sentinel) Error() string {
	return string(sentinel)
}

// Code exposes the sentinel code string.
func (sentinel Sentinel) Code() string {
	return string(sentinel)
}

// OperationError annotates an error with the stage and subject (host or repository) it concerns.
type OperationError struct {
	operation Operation
	subject   string
	err       error
	message   string
}

// Error implements the error interface.
func (operationError OperationError) Error() string {
	if len(operationError.message) > 0 {
		if len(operationError.subject) == 0 {
			return fmt.Sprintf("%s: %s", operationError.operation, operationError.message)
		}
		return fmt.Sprintf("%s[%s]: %s", operationError.operation, operationError.subject, operationError.message)
	}
	if len(operationError.subject) == 0 {
		return fmt.Sprintf("%s: %v", operationError.operation, operationError.err)
	}
	return fmt.Sprintf("%s[%s]: %v", operationError.operation, operationError.subject, operationError.err)
}

// Unwrap exposes the underlying error chain.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the originating operation identifier.
func (operationError OperationError) Operation() Operation {
	return operationError.operation
}

// Subject returns the host or repository related to the error.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code surfaces the sentinel code of the wrapped error when present.
func (operationError OperationError) Code() string {
	if sentinel, found := findSentinel(operationError.err); found {
		return sentinel.Code()
	}
	return ""
}

// Wrap constructs an OperationError combining the provided metadata with the base sentinel.
func Wrap(operation Operation, subject string, sentinel Sentinel, detail error) error {
	if len(sentinel) == 0 {
		return OperationError{operation: operation, subject: subject, err: detail}
	}
	baseError := error(sentinel)
	if detail != nil {
		baseError = fmt.Errorf("%w: %w", sentinel, detail)
	}
	return OperationError{operation: operation, subject: subject, err: baseError}
}

// WrapMessage constructs an OperationError combining the provided metadata with a formatted message.
func WrapMessage(operation Operation, subject string, sentinel Sentinel, message string) error {
	if len(message) == 0 {
		return Wrap(operation, subject, sentinel, nil)
	}
	return OperationError{operation: operation, subject: subject, err: fmt.Errorf("%w: %s", sentinel, message), message: message}
}

func findSentinel(err error) (Sentinel, bool) {
	if err == nil {
		return "", false
	}
	var sentinel Sentinel
	if stdErrors.As(err, &sentinel) {
		return sentinel, true
	}
	return "", false
}

var (
	// ErrHostNameMissing indicates a host was configured without a name.
	ErrHostNameMissing Sentinel = "host_name_missing"
	// ErrDuplicateHost indicates two configured hosts share a name.
	ErrDuplicateHost Sentinel = "duplicate_host"
	// ErrUnknownRole indicates a host role other than source or backup.
	ErrUnknownRole Sentinel = "unknown_role"
	// ErrHostProviderMissing indicates a host was registered without a provider.
	ErrHostProviderMissing Sentinel = "host_provider_missing"
	// ErrNoBackupHosts indicates the registry contains no backup host.
	ErrNoBackupHosts Sentinel = "no_backup_hosts"
	// ErrBackupHostListingFailed indicates a backup host could not be listed; the run must abort.
	ErrBackupHostListingFailed Sentinel = "backup_host_listing_failed"
	// ErrSourceHostListingFailed indicates a source host could not be listed; the host is treated as empty.
	ErrSourceHostListingFailed Sentinel = "source_host_listing_failed"
	// ErrReferenceComparisonFailed indicates ref states of two repositories could not be compared.
	ErrReferenceComparisonFailed Sentinel = "reference_comparison_failed"
	// ErrRepositoryCreateFailed indicates a backup repository could not be created.
	ErrRepositoryCreateFailed Sentinel = "repository_create_failed"
	// ErrDescriptionUpdateFailed indicates a backup description could not be rewritten.
	ErrDescriptionUpdateFailed Sentinel = "description_update_failed"
	// ErrMirrorPushFailed indicates pushing refs to a backup repository failed.
	ErrMirrorPushFailed Sentinel = "mirror_push_failed"
	// ErrRepositoryDeleteFailed indicates an orphaned backup could not be deleted.
	ErrRepositoryDeleteFailed Sentinel = "repository_delete_failed"
	// ErrIncompleteSourceInventory indicates scrub was refused because a source host listing failed.
	ErrIncompleteSourceInventory Sentinel = "incomplete_source_inventory"
)
