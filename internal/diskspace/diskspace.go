// Package diskspace checks free space before results are written to disk.
package diskspace

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// DefaultMargin leaves 10% headroom over the expected size.
const DefaultMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Dir            string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space in %s: need %s, have %s available",
		e.Dir, humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// IsInsufficientSpaceError reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var e *InsufficientSpaceError
	return errors.As(err, &e)
}

// availableFunc is replaced in tests.
var availableFunc = available

// Check returns an InsufficientSpaceError if dir's filesystem has less than
// requiredBytes*margin free. Unknown sizes (<= 0) and filesystems that cannot
// be queried pass, so the write itself reports the failure.
func Check(dir string, requiredBytes int64, margin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	avail, ok := availableFunc(dir)
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * margin)
	if avail < required {
		return &InsufficientSpaceError{
			Dir:            dir,
			RequiredBytes:  required,
			AvailableBytes: avail,
		}
	}
	return nil
}

// Available returns the free bytes on dir's filesystem, or 0 if unknown.
func Available(dir string) int64 {
	avail, ok := availableFunc(dir)
	if !ok {
		return 0
	}
	return avail
}
