package safeconv_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gitlines/pkg/safeconv"
)

func TestMustInt64ToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), safeconv.MustInt64ToUint64(0))
	assert.Equal(t, uint64(4096), safeconv.MustInt64ToUint64(4096))
	assert.Equal(t, uint64(math.MaxInt64), safeconv.MustInt64ToUint64(math.MaxInt64))

	assert.PanicsWithValue(t, "safeconv: negative int64 to uint64 conversion", func() {
		safeconv.MustInt64ToUint64(-1)
	})
}
