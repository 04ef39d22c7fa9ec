package packet

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatKind selects how a numeric field is rendered for display.
type FormatKind uint8

const (
	FormatRaw FormatKind = iota
	FormatMoney
	FormatCount
	FormatPercent
	FormatTimestamp
)

// DefaultPrecision is the money precision used until a precision field is seen.
const DefaultPrecision = 2

const (
	percentDecimals = 2
	maxDecimals     = 15
)

var formatKindNames = map[FormatKind]string{
	FormatRaw:       "raw",
	FormatMoney:     "money",
	FormatCount:     "count",
	FormatPercent:   "percent",
	FormatTimestamp: "timestamp",
}

func (k FormatKind) String() string {
	if name, ok := formatKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint8(k))
}

func (k FormatKind) MarshalText() ([]byte, error) {
	name, ok := formatKindNames[k]
	if !ok {
		return nil, fmt.Errorf("packet: unknown format %d", uint8(k))
	}
	return []byte(name), nil
}

func (k *FormatKind) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*k = FormatRaw
		return nil
	}
	for kind, name := range formatKindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("packet: unknown format %q", s)
}

// monthNames is the vendor's month table; June and July are spelled out.
var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "June", "July", "Aug", "Sep", "Oct", "Nov", "Dec"}

var printer = message.NewPrinter(language.English)

// FormatGrouped renders v with thousands separators and exactly decimals
// fraction digits, e.g. 1234.5 with 2 decimals -> "1,234.50".
func FormatGrouped(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > maxDecimals {
		decimals = maxDecimals
	}
	out := printer.Sprintf("%v", number.Decimal(v, number.Scale(decimals)))
	// a value that rounds to zero prints unsigned
	if strings.HasPrefix(out, "-") && strings.Trim(out[1:], "0.,") == "" {
		out = out[1:]
	}
	return out
}

// FormatTime renders Unix seconds as "DD Mon YYYY, HH:MM:SS AM/PM".
// The hour keeps the 24-hour clock of the vendor format.
func FormatTime(sec int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := time.Unix(sec, 0).In(loc)
	marker := "AM"
	if t.Hour() >= 12 {
		marker = "PM"
	}
	return fmt.Sprintf("%02d %s %d, %02d:%02d:%02d %s",
		t.Day(), monthNames[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second(), marker)
}

// apply formats a decoded numeric value. Strings never reach here.
func (k FormatKind) apply(raw any, precision int, loc *time.Location) any {
	switch k {
	case FormatMoney:
		return FormatGrouped(toFloat(raw), precision)
	case FormatPercent:
		return FormatGrouped(toFloat(raw), percentDecimals)
	case FormatCount:
		return FormatGrouped(toFloat(raw), 0)
	case FormatTimestamp:
		return FormatTime(toInt(raw), loc)
	default:
		return raw
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case uint8:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case uint8:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
