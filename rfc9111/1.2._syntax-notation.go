package rfc9111

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// §  1.2.2.  Delta Seconds
// §
// §       delta-seconds  = 1*DIGIT
// §
// §     If a cache receives a delta-seconds value greater than the greatest
// §     integer it can represent, or if any of its subsequent calculations
// §     overflows, the cache MUST consider the value to be 2147483648 (2^31)
// §     or the greatest positive integer it can conveniently represent.
const maxDeltaSeconds = math.MaxInt32 + 1

// deltaSeconds parses a delta-seconds value. ok is false when the value is
// not a run of digits.
func deltaSeconds(value string) (d time.Duration, ok bool) {
	if value == "" {
		return 0, false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	seconds, err := strconv.ParseUint(value, 10, 64)
	if err != nil || seconds > maxDeltaSeconds {
		// only overflow can fail here
		seconds = maxDeltaSeconds
	}
	return time.Duration(seconds) * time.Second, true
}

// RFC 9110 §5.6.7 lists the accepted HTTP-date layouts, preferred first.
// GMT is matched case-insensitively (RFC 9111 §4.2).
var httpDateLayouts = []string{
	http.TimeFormat,
	time.RFC850,
	time.ANSIC,
}

var errNotGMT = errors.New("HTTP-date is not in GMT")

// ParseHTTPDate parses any of the three HTTP-date formats. Dates carrying a
// zone other than GMT are rejected for expiration purposes.
func ParseHTTPDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if i := strings.LastIndexByte(value, ' '); i >= 0 && strings.EqualFold(value[i+1:], "gmt") {
		value = value[:i+1] + "GMT"
	}
	var firstErr error
	for _, layout := range httpDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			if name, _ := t.Zone(); layout != time.ANSIC && name != "GMT" && name != "UTC" {
				return time.Time{}, errNotGMT
			}
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FormatHTTPDate renders t as an IMF-fixdate.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
