package gps

import (
	"fmt"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestParse_KnownFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		lat  float64
		lon  float64
	}{
		{
			name: "google maps link north west",
			text: "Current position! http://maps.google.com/maps?q=N7.097760,W73.122780",
			lat:  7.097760,
			lon:  -73.122780,
		},
		{
			name: "google maps link south east",
			text: "http://maps.google.com/maps?q=S7.097760,E73.122780",
			lat:  -7.097760,
			lon:  73.122780,
		},
		{
			name: "bare query parameter",
			text: "q=N7.09,W73.12",
			lat:  7.09,
			lon:  -73.12,
		},
		{
			name: "labelled lat lon",
			text: "LAT:7.1254,LON:-73.1198",
			lat:  7.1254,
			lon:  -73.1198,
		},
		{
			name: "labelled lowercase",
			text: "lat: 7.1254, lon: -73.1198",
			lat:  7.1254,
			lon:  -73.1198,
		},
		{
			name: "bare signed pair",
			text: "7.1254,-73.1198",
			lat:  7.1254,
			lon:  -73.1198,
		},
		{
			name: "key value pair",
			text: "lat=7.1254&lon=-73.1198",
			lat:  7.1254,
			lon:  -73.1198,
		},
		{
			name: "gps prefix",
			text: "GPS:7.1254,-73.1198",
			lat:  7.1254,
			lon:  -73.1198,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Parse(tc.text, "+573001234567")
			if got == nil {
				t.Fatalf("Parse(%q) returned nil", tc.text)
			}
			if math.Abs(got.Latitude-tc.lat) > epsilon {
				t.Fatalf("latitude = %v, want %v", got.Latitude, tc.lat)
			}
			if math.Abs(got.Longitude-tc.lon) > epsilon {
				t.Fatalf("longitude = %v, want %v", got.Longitude, tc.lon)
			}
			if got.SourcePhone != "+573001234567" {
				t.Fatalf("SourcePhone = %q, want passthrough", got.SourcePhone)
			}
			if got.RawText != tc.text {
				t.Fatalf("RawText = %q, want original text", got.RawText)
			}
		})
	}
}

func TestParse_Unrecognized(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"hello world",
		"",
		"battery low",
	} {
		if got := Parse(text, "300"); got != nil {
			t.Fatalf("Parse(%q) = %+v, want nil", text, got)
		}
	}
}

func TestParse_OutOfRangeMatchIsNotReturned(t *testing.T) {
	t.Parallel()

	// The labelled rule matches but latitude 200 is invalid; no later
	// rule yields a plausible pair either, so the parse fails whole.
	if got := Parse("LAT:200,LON:10", "300"); got != nil {
		t.Fatalf("expected nil for out-of-range coordinates, got %+v", got)
	}
}

func TestParse_OutOfRangeFallsThroughToLaterRule(t *testing.T) {
	t.Parallel()

	// The bare-pair rule would latch onto "999,999" first, but that
	// pair is out of range; the key-value rule still finds the fix.
	got := Parse("err 999,999 lat=7.5&lon=-73.5", "300")
	if got == nil {
		t.Fatalf("expected fallthrough to key-value rule, got nil")
	}
	if got.Latitude != 7.5 || got.Longitude != -73.5 {
		t.Fatalf("got (%v, %v), want (7.5, -73.5)", got.Latitude, got.Longitude)
	}
}

func TestParse_LabelledRoundTrip(t *testing.T) {
	t.Parallel()

	coords := []struct{ lat, lon float64 }{
		{0, 0},
		{90, 180},
		{-90, -180},
		{7.1254, -73.1198},
		{-33.45, 70.66},
		{89.999999, 179.999999},
	}

	for _, c := range coords {
		text := fmt.Sprintf("LAT:%f,LON:%f", c.lat, c.lon)
		got := Parse(text, "300")
		if got == nil {
			t.Fatalf("Parse(%q) returned nil", text)
		}
		if math.Abs(got.Latitude-c.lat) > 1e-6 || math.Abs(got.Longitude-c.lon) > 1e-6 {
			t.Fatalf("round trip %q = (%v, %v)", text, got.Latitude, got.Longitude)
		}
	}
}

func TestParse_FirstRuleWins(t *testing.T) {
	t.Parallel()

	// A maps link and a contradictory labelled pair in one message:
	// the more specific maps rule must win.
	text := "maps.google.com/maps?q=N1.5,W2.5 LAT:3.5,LON:4.5"
	got := Parse(text, "300")
	if got == nil {
		t.Fatal("Parse returned nil")
	}
	if got.Latitude != 1.5 || got.Longitude != -2.5 {
		t.Fatalf("got (%v, %v), want maps-link coordinates (1.5, -2.5)", got.Latitude, got.Longitude)
	}
}
