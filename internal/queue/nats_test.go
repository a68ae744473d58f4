package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{7, 5 * time.Second},
		{50, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fetchBackoff(tt.failures), "failures=%d", tt.failures)
	}
}
