package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuousFreeBytes(t *testing.T) {
	cases := []struct {
		name             string
		w, r, size, free uint64
		want             uint64
	}{
		{"empty ring", 0, 0, 0, 0, 0},
		{"fully empty, write at zero", 0, 0, 1024, 1024, 1024},
		{"writer ahead of reader", 100, 10, 1024, 500, 500}, // size-w=924 > free
		{"writer ahead, limited by tail", 900, 10, 1024, 500, 124},
		{"writer behind reader", 10, 100, 1024, 90, 90},
		{"writer behind reader, limited by free", 10, 100, 1024, 50, 50},
		{"equal positions, ring full", 50, 50, 1024, 0, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := continuousFreeBytes(c.w, c.r, c.size, c.free)
			assert.Equal(t, c.want, got)
		})
	}
}
