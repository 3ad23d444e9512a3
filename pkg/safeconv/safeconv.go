// Package safeconv provides integer conversions that panic on overflow.
package safeconv

// MustInt64ToUint64 converts int64 to uint64, panics if negative.
// Use only when negative values are logically impossible, such as file sizes.
func MustInt64ToUint64(v int64) uint64 {
	if v < 0 {
		panic("safeconv: negative int64 to uint64 conversion")
	}

	return uint64(v)
}
