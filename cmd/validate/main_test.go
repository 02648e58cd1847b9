package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickswetUCSD/feeding-sd-exploration/internal/config"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "User ID,Opportunity City,Opportunity State,Opportunity Zip,Date Of Birth,Date,Time,End Date,End Time,Hours,Languages Spoken,Public Gender\n"

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_Report(t *testing.T) {
	t.Setenv("BULK_ERROR_THRESHOLD", "2")
	body := header +
		"u-1,San Diego,CA,92101,,2023-01-02,9:00 AM,,5:00 PM,8,,\n" +
		"u-2,San Diego,CA,,,2023-01-03,9:00 AM,,5:00 PM,8,,\n" +
		strings.Repeat("u-3,San Diego,CA,92101,,2023-07-01,9:00 AM,,5:00 PM,8,,\n", 3) +
		"u-4,San Diego,CA,92101,,2023-01-05,not a time,,5:00 PM,8,,\n"

	var out bytes.Buffer
	require.NoError(t, run(testConfig(t), discardLogger(), writeFile(t, body), &out))

	report := out.String()
	assert.Regexp(t, `rows in\s+6\n`, report)
	assert.Regexp(t, `rows out\s+1\n`, report)
	assert.Regexp(t, `dropped: bulk_date\s+3\n`, report)
	assert.Regexp(t, `dropped: missing_zip\s+1\n`, report)
	assert.Regexp(t, `dropped: unparseable_start\s+1\n`, report)
	assert.Contains(t, report, "2023-07-01 (3 rows)")
}

func TestRun_FailPolicy(t *testing.T) {
	t.Setenv("PARSE_FAILURE_POLICY", "fail")
	body := header + "u-4,San Diego,CA,92101,,2023-01-05,not a time,,5:00 PM,8,,\n"

	err := run(testConfig(t), discardLogger(), writeFile(t, body), io.Discard)
	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, domain.ColTime, rowErr.Field)
}

func TestRun_MissingColumns(t *testing.T) {
	err := run(testConfig(t), discardLogger(), writeFile(t, "User ID,Date\nu-1,2023-01-02\n"), io.Discard)
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, domain.ColZip)
}

func TestRootCommand_ArgCount(t *testing.T) {
	cmd := newRootCommand(io.Discard)
	cmd.SetArgs(nil)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.Execute())
}

func TestRootCommand_LoggerFromEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	body := header + "u-1,San Diego,CA,92101,,2023-01-02,9:00 AM,,5:00 PM,8,,\n"
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs([]string{writeFile(t, body)})
	require.NoError(t, cmd.Execute())

	ctx := context.Background()
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelWarn))
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelInfo))
	assert.Regexp(t, `rows out\s+1\n`, out.String())
}
