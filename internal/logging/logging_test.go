package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSyslogConfig(t *testing.T) {
	cfg := DefaultSyslogConfig()
	require.False(t, cfg.Enabled)
	require.Equal(t, 514, cfg.Port)
	require.Equal(t, "udp", cfg.Protocol)
	require.Equal(t, "netlab", cfg.Tag)
	require.Equal(t, 1, cfg.Facility)
}

func TestNewSyslogWriterMissingHost(t *testing.T) {
	_, err := NewSyslogWriter(SyslogConfig{Enabled: true})
	require.Error(t, err)
}

func TestNewLoggerDefaultsToStderr(t *testing.T) {
	logger := New(Config{})
	require.NotNil(t, logger)
}
