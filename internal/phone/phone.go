package phone

import "strings"

// Country calling code assumed when a number has none. The fleet is
// Colombian, so trackers are registered with local SIM numbers.
const defaultCountryCode = "57"

// Normalize converts a raw SIM number into the +E.164-ish form the SMS
// providers expect. Numbers that already carry a + are trusted as-is.
// Every gateway must send to exactly this format or delivery breaks
// silently, so all of them go through here.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	if strings.HasPrefix(p, "+") {
		return p
	}

	p = stripSeparators(p)
	p = strings.TrimPrefix(p, "0")

	if strings.HasPrefix(p, defaultCountryCode) {
		return "+" + p
	}
	return "+" + defaultCountryCode + p
}

// Digits returns the number with the + and separators removed. Some
// gateway apps reject the + sign and want bare digits.
func Digits(raw string) string {
	return strings.ReplaceAll(stripSeparators(strings.TrimSpace(raw)), "+", "")
}

func stripSeparators(p string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return r.Replace(p)
}
