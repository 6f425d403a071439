package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMemory(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"512", 512},
		{"1K", 1024},
		{"2M", 2 * 1024 * 1024},
		{"1G", 1 << 30},
		{"1T", 1 << 40},
	}
	for _, c := range cases {
		got, err := parseMemory(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestParseMemoryInvalid(t *testing.T) {
	_, err := parseMemory("not-a-size")
	require.Error(t, err)
}

func TestNanoCPUs(t *testing.T) {
	require.EqualValues(t, 1_500_000_000, nanoCPUs(1.5))
}
