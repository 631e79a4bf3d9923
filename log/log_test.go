package log_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/log"
)

func TestDefaultLoggerReturnsSameInstance(t *testing.T) {
	a := log.DefaultLogger()
	b := log.DefaultLogger()
	require.NotNil(t, a)
	require.Same(t, a, b)
}

func TestWithAddsFields(t *testing.T) {
	l := log.DefaultLogger()
	child := l.With("conn", "abc")
	require.NotNil(t, child)
	// With must return a usable Logger, not mutate the parent.
	child.Infow("test", "event", "noop")
}

func TestNamedReturnsDistinctLogger(t *testing.T) {
	l := log.DefaultLogger()
	named := l.Named("test-component")
	require.NotNil(t, named)
	require.NotSame(t, l, named)
	named.Debugw("test", "event", "noop")
}

func TestConfigureDefaultLoggerLevels(t *testing.T) {
	log.ConfigureDefaultLogger(log.DebugLevel, true)
	l := log.DefaultLogger()
	require.NotNil(t, l)
	l.Debugw("debug message", "k", "v")

	log.ConfigureDefaultLogger(log.InfoLevel, false)
	l2 := log.DefaultLogger()
	require.NotNil(t, l2)
}
