package main

import (
	"testing"
	"time"
)

func TestReportWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	from, to, err := reportWindow("", "", now)
	if err != nil {
		t.Fatalf("reportWindow failed: %v", err)
	}
	if !to.Equal(now) || !from.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("default window = [%v, %v]", from, to)
	}

	from, to, err = reportWindow("2026-02-01T00:00:00Z", "2026-02-02T00:00:00Z", now)
	if err != nil {
		t.Fatalf("reportWindow failed: %v", err)
	}
	if to.Sub(from) != 24*time.Hour {
		t.Errorf("explicit window spans %v, want 24h", to.Sub(from))
	}

	for _, tc := range []struct{ from, to string }{
		{"yesterday", ""},
		{"", "not-a-time"},
		{"2026-02-02T00:00:00Z", "2026-02-01T00:00:00Z"},
	} {
		if _, _, err := reportWindow(tc.from, tc.to, now); err == nil {
			t.Errorf("reportWindow(%q, %q) succeeded, want error", tc.from, tc.to)
		}
	}
}
