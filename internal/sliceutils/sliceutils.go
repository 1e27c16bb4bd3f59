// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package sliceutils

// ContainsValue returns true if the slice contains the given value.
func ContainsValue[T comparable](slice []T, value T) bool {
	for _, entry := range slice {
		if entry == value {
			return true
		}
	}

	return false
}

// FindValueFunc returns the first value for which the matcher returns true.
func FindValueFunc[T any](slice []T, matcher func(T) bool) (T, bool) {
	for _, entry := range slice {
		if matcher(entry) {
			return entry, true
		}
	}

	var empty T
	return empty, false
}
