// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package retry

import (
	"time"
)

// Run invokes the given function up to attempts times, sleeping between
// attempts, until it returns nil. The last error is returned if all attempts
// fail.
func Run(function func() error, attempts int, sleep time.Duration) (err error) {
	for i := 0; i < attempts; i++ {
		if i != 0 {
			time.Sleep(sleep)
		}

		err = function()
		if err == nil {
			break
		}
	}

	return
}
