package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveFile(t *testing.T) {
	before := testutil.ToFloat64(bakerFilesTotal.WithLabelValues("html", FileStaged))
	ObserveFile("html", FileStaged)
	ObserveFile("html", FileStaged)
	if got := testutil.ToFloat64(bakerFilesTotal.WithLabelValues("html", FileStaged)); got != before+2 {
		t.Errorf("expected html staged count %f, got %f", before+2, got)
	}
}

func TestObserveStageOutcome(t *testing.T) {
	ObserveStage("redirects", 10*time.Millisecond, nil)
	ObserveStage("redirects", 10*time.Millisecond, errors.New("boom"))
	if got := testutil.CollectAndCount(bakerStageDurationSeconds, "sitebaker_stage_duration_seconds"); got < 2 {
		t.Errorf("expected ok and error series, got %d", got)
	}
}

func TestObserveJobAndWorkers(t *testing.T) {
	before := testutil.ToFloat64(bakerJobsTotal.WithLabelValues("succeeded"))
	ObserveJob("succeeded")
	if got := testutil.ToFloat64(bakerJobsTotal.WithLabelValues("succeeded")); got != before+1 {
		t.Errorf("expected job count %f, got %f", before+1, got)
	}

	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(bakerActiveWorkers); got < 1 {
		t.Errorf("expected at least one active worker, got %f", got)
	}
	DecActiveWorkers()
}

func TestObserveChartExportAndRateLimit(t *testing.T) {
	before := testutil.ToFloat64(bakerChartExportsTotal.WithLabelValues("svg"))
	ObserveChartExport("svg")
	if got := testutil.ToFloat64(bakerChartExportsTotal.WithLabelValues("svg")); got != before+1 {
		t.Errorf("expected svg export count %f, got %f", before+1, got)
	}
	ObserveRateLimitDelay("ourworldindata.org", 200*time.Millisecond)
	if got := testutil.CollectAndCount(bakerRateLimitDelaysSeconds); got < 1 {
		t.Errorf("expected rate limit histogram to be observed, got %d", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
