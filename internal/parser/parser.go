package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/msgtrace/tracecheck/internal/models"
)

// RecordKind identifies which trace shape a line matched.
type RecordKind int

const (
	KindNone RecordKind = iota
	KindContinuation
	KindConnect
	KindDisconnect
	KindPublish
)

func (k RecordKind) String() string {
	switch k {
	case KindContinuation:
		return "continuation"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindPublish:
		return "publish"
	default:
		return "none"
	}
}

// Record holds the typed fields captured from one trace line.
// Only the fields relevant to Kind are set.
type Record struct {
	Kind      RecordKind
	Date      string
	Time      string
	SlotID    string
	ClientID  string
	CloseCode int
	Length    int    // declared byte length of a published message
	Offset    int    // dump offset of a continuation line
	Fragment  string // printable text of a continuation line
	Raw       string
}

// Common utilities for parsing

// parseCount converts a numeric capture; failures are fatal for the run.
func parseCount(field, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewMalformedFieldError(field, raw, err)
	}
	if n < 0 {
		return 0, models.NewMalformedFieldError(field, raw, nil)
	}
	return n, nil
}

// parseSlotID validates a connection slot identifier and returns it unchanged.
func parseSlotID(raw string) (string, error) {
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return "", models.NewMalformedFieldError("connect", raw, err)
	}
	return raw, nil
}

// ParseTimestamp parses an ISO-8601 payload time. Zoned RFC 3339 values are
// tried first, then the zone-less "YYYY-MM-DD[T ]HH:MM:SS.fff" form as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	return FastTimestamp(ts)
}

// FastTimestamp parses "%Y-%m-%d %H:%M:%S.%f" (or with a 'T' separator)
// using manual parsing for speed.
func FastTimestamp(ts string) (time.Time, error) {
	// Example: "2025-09-25 06:02:11.086"
	if len(ts) < 19 {
		return time.Time{}, fmt.Errorf("timestamp too short: %s", ts)
	}
	if ts[10] != ' ' && ts[10] != 'T' {
		return time.Time{}, fmt.Errorf("bad date/time separator: %s", ts)
	}
	if ts[4] != '-' || ts[7] != '-' || ts[13] != ':' || ts[16] != ':' {
		return time.Time{}, fmt.Errorf("bad field separator: %s", ts)
	}

	year := parseInt4(ts[0:4])
	month := parseInt2(ts[5:7])
	day := parseInt2(ts[8:10])
	hour := parseInt2(ts[11:13])
	min := parseInt2(ts[14:16])
	sec := parseInt2(ts[17:19])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}, fmt.Errorf("invalid timestamp: %s", ts)
	}

	var nsec int
	if len(ts) > 19 {
		if ts[19] != '.' || len(ts) == 20 {
			return time.Time{}, fmt.Errorf("invalid fractional seconds: %s", ts)
		}
		frac := ts[20:]
		fracLen := len(frac)
		if fracLen > 9 {
			frac = frac[:9]
			fracLen = 9
		}
		nsec = parseIntN(frac, fracLen)
		if nsec < 0 {
			return time.Time{}, fmt.Errorf("invalid fractional seconds: %s", ts)
		}
		for i := fracLen; i < 9; i++ {
			nsec *= 10
		}
	}

	t := time.Date(year, time.Month(month), day, hour, min, sec, nsec, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("day out of range for month: %s", ts)
	}
	return t, nil
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	if len(s) != 4 {
		return -1
	}
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an n-digit decimal string. Returns -1 on error.
func parseIntN(s string, n int) int {
	result := 0
	for i := 0; i < n; i++ {
		d := s[i] - '0'
		if d > 9 {
			return -1
		}
		result = result*10 + int(d)
	}
	return result
}
