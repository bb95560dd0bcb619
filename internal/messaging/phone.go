package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d`)

// NormalizePhone strips everything but digits. Numbers outside 9 to 11 digits return "".
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
	if strings.HasPrefix(value, "+82") && strings.HasPrefix(digits, "82") {
		digits = "0" + digits[2:]
	}
	if len(digits) < 9 || len(digits) > 11 {
		return ""
	}
	return digits
}
