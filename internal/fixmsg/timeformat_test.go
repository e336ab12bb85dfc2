package fixmsg_test

import (
	"testing"
	"time"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

func TestFormatParseSendingTimeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prec fixmsg.Precision
	}{
		{"second", fixmsg.PrecisionSecond},
		{"millis", fixmsg.PrecisionMillis},
		{"micros", fixmsg.PrecisionMicros},
		{"nanos", fixmsg.PrecisionNanos},
	}

	at := time.Date(2026, 7, 30, 14, 5, 9, 123456789, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := fixmsg.FormatSendingTime(at, tt.prec)
			got, err := fixmsg.ParseSendingTime(s)
			if err != nil {
				t.Fatalf("ParseSendingTime(%q): %v", s, err)
			}
			if !got.Truncate(time.Second).Equal(at.Truncate(time.Second)) {
				t.Fatalf("round trip second component mismatch: got %v, want %v", got, at)
			}
		})
	}
}

func TestAllowsSubSecond(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"FIX.4.0":  false,
		"FIX.4.1":  false,
		"FIX.4.2":  true,
		"FIX.4.4":  true,
		"FIXT.1.1": true,
	}
	for beginString, want := range cases {
		if got := fixmsg.AllowsSubSecond(beginString); got != want {
			t.Errorf("AllowsSubSecond(%q) = %v, want %v", beginString, got, want)
		}
	}
}
