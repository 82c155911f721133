package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestValidateBackendRejectsUnknown(t *testing.T) {
	err := ValidateBackend(BackendConfig{Selected: "gpt4all"})
	require.Error(t, err)
}

func TestValidateRetriesRejectsNonPositive(t *testing.T) {
	require.Error(t, ValidateRetries(RetriesConfig{MaxAuditRetries: 0, MaxTestRetries: 5}))
	require.Error(t, ValidateRetries(RetriesConfig{MaxAuditRetries: 4, MaxTestRetries: -1}))
}

func TestValidateTracingRequiresFilePathWhenFileExporterEnabled(t *testing.T) {
	err := ValidateTracing(TracingConfig{Enabled: true, Exporter: "file"})
	require.Error(t, err)

	require.NoError(t, ValidateTracing(TracingConfig{Enabled: true, Exporter: "file", FilePath: "/tmp/x.jsonl"}))
}

func TestValidateTracingRejectsBadSampleRate(t *testing.T) {
	require.Error(t, ValidateTracing(TracingConfig{SampleRate: 1.5}))
	require.Error(t, ValidateTracing(TracingConfig{SampleRate: -0.1}))
}

func TestWriteDefaultConfigCreatesReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, WriteDefaultConfig(path))
	require.FileExists(t, path)
}
