// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package ptrutils

// PtrTo returns a pointer to the given value.
func PtrTo[T any](value T) *T {
	return &value
}
