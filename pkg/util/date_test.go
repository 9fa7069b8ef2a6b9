package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2025-02-14")
	if !ok || got.Day() != 14 || got.Month() != time.February {
		t.Fatalf("unexpected date %v %v", got, ok)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2025, 5, 1, 13, 47, 12, 0, time.UTC)
	to := from.Add(50 * time.Hour)

	f, tt := AlignFromTo(from, to, "1h")
	if f.Minute() != 0 || tt.Minute() != 0 || f.Hour() != 13 {
		t.Fatalf("hourly alignment wrong: %v %v", f, tt)
	}
	f, _ = AlignFromTo(from, to, "5m")
	if f.Minute() != 45 || f.Second() != 0 {
		t.Fatalf("5m alignment wrong: %v", f)
	}
	f, _ = AlignFromTo(from, to, "24h")
	if !f.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("daily alignment wrong: %v", f)
	}
}
