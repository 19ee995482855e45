package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epoch is the creation time given to items whose pubDate cannot be parsed
var epoch = time.Unix(0, 0).UTC()

var pubDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePubDate converts a feed pubDate to a UTC timestamp with second precision.
// On failure it returns the Unix epoch together with the error.
func ParsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return epoch, fmt.Errorf("empty pubDate")
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return epoch, fmt.Errorf("unrecognized pubDate %q", value)
}
