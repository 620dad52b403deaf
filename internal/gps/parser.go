// Package gps extracts coordinates from the SMS replies GPS trackers
// send back. Carrier firmware is wildly inconsistent about formatting,
// so parsing is a fixed list of recognition rules tried most specific
// first.
package gps

import (
	"regexp"
	"strconv"
)

// ParsedLocation is one position extracted from an inbound SMS. The
// source phone and raw text ride along for routing and diagnostics.
type ParsedLocation struct {
	Latitude    float64
	Longitude   float64
	SourcePhone string
	RawText     string
}

type rule struct {
	re *regexp.Regexp
	// hemisphere rules capture (N|S)lat,(E|W)lon instead of signed floats.
	hemisphere bool
}

// Rule order matters: labelled formats must come before the bare float
// pair or the pair rule would shadow them.
var rules = []rule{
	{re: regexp.MustCompile(`(?i)maps\.google\.com/maps\?q=([NS])(\d+\.?\d*),([EW])(\d+\.?\d*)`), hemisphere: true},
	{re: regexp.MustCompile(`(?i)q=([NS])(\d+\.?\d*),([EW])(\d+\.?\d*)`), hemisphere: true},
	{re: regexp.MustCompile(`(?i)LAT[:\s]*([+-]?\d+\.?\d*)[,\s]+LON[:\s]*([+-]?\d+\.?\d*)`)},
	{re: regexp.MustCompile(`([+-]?\d+\.?\d*)[,\s]+([+-]?\d+\.?\d*)`)},
	{re: regexp.MustCompile(`(?i)lat[=:]\s*([+-]?\d+\.?\d*)[,\s&]+lon[=:]\s*([+-]?\d+\.?\d*)`)},
	{re: regexp.MustCompile(`(?i)GPS[:\s]*([+-]?\d+\.?\d*)[,\s]+([+-]?\d+\.?\d*)`)},
}

// Parse runs the recognition rules against text and returns the first
// in-range coordinate pair, or nil when nothing plausible is found.
// A rule that matches but yields an out-of-range pair does not end the
// search; a later, more permissive rule may still find the real fix.
func Parse(text, sourcePhone string) *ParsedLocation {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var lat, lon float64
		var err error
		if r.hemisphere {
			lat, lon, err = hemisphereCoords(m)
		} else {
			lat, lon, err = signedCoords(m)
		}
		if err != nil {
			continue
		}

		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}

		return &ParsedLocation{
			Latitude:    lat,
			Longitude:   lon,
			SourcePhone: sourcePhone,
			RawText:     text,
		}
	}
	return nil
}

func hemisphereCoords(m []string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return 0, 0, err
	}
	if m[1] == "S" || m[1] == "s" {
		lat = -lat
	}
	if m[3] == "W" || m[3] == "w" {
		lon = -lon
	}
	return lat, lon, nil
}

func signedCoords(m []string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
