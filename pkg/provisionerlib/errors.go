// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"errors"
	"fmt"
)

// Global error types for categorization
var (
	UsageError        = errors.New("usage")
	PreconditionError = errors.New("precondition")
	IntegrityError    = errors.New("integrity")
	ExternalToolError = errors.New("external-tool")
	InternalError     = errors.New("internal")
)

// Static error messages as global variables
var (
	ToolMustRunAsRootError    = errors.New("tool must be run as root (e.g. by using sudo)")
	DeviceNotBlockError       = errors.New("target is not a block device")
	DeviceAlreadyFormattedErr = errors.New("target device already carries a filesystem or partition-table signature")
)

// ProvisionerError carries a category alongside a message and cause, so
// callers can classify failures with errors.Is while still unwrapping the
// underlying error.
type ProvisionerError struct {
	Type    error
	Message string
	Cause   error
}

func (e *ProvisionerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s:\n%v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProvisionerError) Unwrap() error {
	return e.Cause
}

func (e *ProvisionerError) Is(target error) bool {
	return errors.Is(e.Type, target)
}

func NewProvisionerError(errorType error, message string) *ProvisionerError {
	return &ProvisionerError{
		Type:    errorType,
		Message: message,
	}
}

func NewProvisionerErrorWithCause(errorType error, message string, cause error) *ProvisionerError {
	return &ProvisionerError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}
