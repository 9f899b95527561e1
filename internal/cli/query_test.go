package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func resetQueryFlags() {
	querySeverity = ""
	querySince = ""
	queryUntil = ""
}

func TestBuildQueryFilter_Empty(t *testing.T) {
	resetQueryFlags()
	filter, err := buildQueryFilter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter != nil {
		t.Fatalf("expected nil filter, got %+v", filter)
	}
}

func TestBuildQueryFilter_SeverityNormalized(t *testing.T) {
	resetQueryFlags()
	querySeverity = "warning"
	t.Cleanup(resetQueryFlags)

	filter, err := buildQueryFilter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Severity != "WARN" {
		t.Errorf("severity = %q, want WARN", filter.Severity)
	}
}

func TestBuildQueryFilter_UnknownSeverity(t *testing.T) {
	resetQueryFlags()
	querySeverity = "noisy"
	t.Cleanup(resetQueryFlags)

	if _, err := buildQueryFilter(); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestBuildQueryFilter_TimeWindow(t *testing.T) {
	resetQueryFlags()
	querySince = "2024-05-01"
	queryUntil = "2024-05-02T12:00:00Z"
	t.Cleanup(resetQueryFlags)

	filter, err := buildQueryFilter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Since != time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("since = %v", filter.Since)
	}
	if filter.Until != time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) {
		t.Errorf("until = %v", filter.Until)
	}
}

func TestBuildQueryFilter_InvertedWindow(t *testing.T) {
	resetQueryFlags()
	querySince = "2024-05-02"
	queryUntil = "2024-05-01"
	t.Cleanup(resetQueryFlags)

	if _, err := buildQueryFilter(); err == nil {
		t.Fatal("expected error for until before since")
	}
}

func TestParseTimeFlag_Garbage(t *testing.T) {
	if _, err := parseTimeFlag("yesterday"); err == nil {
		t.Fatal("expected error for unparsable time")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "lograg") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--help"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"ingest", "query", "generate", "watch", "version"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("help output missing %q", sub)
		}
	}
}
