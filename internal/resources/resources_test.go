package resources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/nettest/internal/resources"
	"github.com/jroosing/nettest/internal/transport"
)

var _ resources.Counter = (*transport.Loopback)(nil)

func TestLeaked(t *testing.T) {
	tests := []struct {
		name      string
		before    int
		after     int
		tolerance int
		want      bool
	}{
		{"nothing lost", 1000, 1000, 32, false},
		{"gained", 1000, 1010, 32, false},
		{"within tolerance", 1000, 968, 32, false},
		{"one past tolerance", 1000, 967, 32, true},
		{"zero tolerance", 10, 9, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resources.Leaked(tt.before, tt.after, tt.tolerance))
		})
	}
}

func TestFDCounter_SeesOpenFiles(t *testing.T) {
	c := resources.NewFDCounter()
	ctx := context.Background()

	before, err := c.CountFree(ctx)
	if err != nil {
		t.Skipf("descriptor count not available here: %v", err)
	}
	require.Positive(t, before)

	const n = 8
	dir := t.TempDir()
	files := make([]*os.File, 0, n)
	for i := range n {
		f, err := os.Create(filepath.Join(dir, string(rune('a'+i))))
		require.NoError(t, err)
		files = append(files, f)
	}

	during, err := c.CountFree(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, during, before-n)

	for _, f := range files {
		require.NoError(t, f.Close())
	}
	after, err := c.CountFree(ctx)
	require.NoError(t, err)
	assert.False(t, resources.Leaked(before, after, resources.DefaultTolerance))
}

func TestMemoryCounter(t *testing.T) {
	n, err := resources.NewMemoryCounter().CountFree(context.Background())
	if err != nil {
		t.Skipf("memory stats not available here: %v", err)
	}
	assert.Positive(t, n)
}

func TestLoopbackAsCounter(t *testing.T) {
	var c resources.Counter = transport.NewLoopback(transport.LoopbackConfig{Buffers: 10, MaxPorts: 5})
	n, err := c.CountFree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, n)
}
