package pgdump

import (
	"fmt"
	"time"
)

// pgEpoch is the PostgreSQL epoch (2000-01-01), Julian day 2451545.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	int32Min = -1 << 31
	int32Max = 1<<31 - 1
)

// formatPgDate renders (year, month, day) PostgreSQL-style: zero-padded
// YYYY-MM-DD, with a trailing " BC" and |year-1| substituted for the
// year when year <= 0 (PostgreSQL's proleptic-Gregorian year 0 is 1 BC).
func formatPgDate(t time.Time) string {
	y, m, d := t.Date()
	if y <= 0 {
		return fmt.Sprintf("%04d-%02d-%02d BC", -(y - 1), int(m), d)
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// appendSeconds renders "SS" plus, if fsec != 0, a '.' followed by up to
// six fractional digits with trailing zeros trimmed, matching
// AppendTimestampSeconds semantics.
func appendSeconds(sec int, fsec int64) string {
	s := fmt.Sprintf("%02d", sec)
	if fsec == 0 {
		return s
	}
	v := fsec
	if v < 0 {
		v = -v
	}
	digits := fmt.Sprintf("%06d", v)
	end := len(digits)
	for end > 0 && digits[end-1] == '0' {
		end--
	}
	if end == 0 {
		return s
	}
	return s + "." + digits[:end]
}

// encodeTimezone renders a signed tz offset (seconds, positive == west of
// UTC in storage convention) as "+HH[:MM[:SS]]"/"-HH[:MM[:SS]]", omitting
// minutes/seconds components that are zero. The sign shown is inverted
// from the stored sign, per EncodeTimezone.
func encodeTimezone(tz int) string {
	sec := tz
	if sec < 0 {
		sec = -sec
	}
	min := sec / 60
	sec -= min * 60
	hour := min / 60
	min -= hour * 60

	sign := "+"
	if tz > 0 {
		sign = "-"
	}
	switch {
	case sec != 0:
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, hour, min, sec)
	case min != 0:
		return fmt.Sprintf("%s%02d:%02d", sign, hour, min)
	default:
		return fmt.Sprintf("%s%02d", sign, hour)
	}
}

// decodeDate decodes a 4-byte signed day count since the PostgreSQL
// epoch into "YYYY-MM-DD" (or "-infinity"/"infinity" for the sentinel
// extremes).
func decodeDate(c *cursor) (string, error) {
	if err := c.alignTo(4); err != nil {
		return "", err
	}
	b, err := c.take(4)
	if err != nil {
		return "", err
	}
	days := int32(u32(b, 0))
	switch days {
	case int32Min:
		return "-infinity", nil
	case int32Max:
		return "infinity", nil
	}
	t := pgEpoch.AddDate(0, 0, int(days))
	return formatPgDate(t), nil
}

// splitMicrosOfDay decomposes a day's microsecond count into H/M/S/µs
// with truncating division, so it expects a non-negative count. The
// timestamp/timestamptz paths below get one from splitTimestamp, which
// does the floor-division day split first.
func splitMicrosOfDay(us int64) (h, m, s int, fsec int64) {
	h = int(us / 3600000000)
	us -= int64(h) * 3600000000
	m = int(us / 60000000)
	us -= int64(m) * 60000000
	s = int(us / 1000000)
	fsec = us - int64(s)*1000000
	return
}

// decodeTime decodes an 8-byte microseconds-of-day value into
// "HH:MM:SS[.ffffff]".
func decodeTime(c *cursor) (string, error) {
	if err := c.alignTo(8); err != nil {
		return "", err
	}
	b, err := c.take(8)
	if err != nil {
		return "", err
	}
	us := int64(u64(b, 0))
	h, m, s, fsec := splitMicrosOfDay(us)
	return fmt.Sprintf("%02d:%02d:%s", h, m, appendSeconds(s, fsec)), nil
}

// decodeTimeTZ decodes the 12-byte {microseconds-of-day int64, zone
// offset int32 seconds} pair into "HH:MM:SS[.ffffff]±HH[:MM[:SS]]".
func decodeTimeTZ(c *cursor) (string, error) {
	if err := c.alignTo(8); err != nil {
		return "", err
	}
	b, err := c.take(12)
	if err != nil {
		return "", err
	}
	us := int64(u64(b, 0))
	tz := int32(u32(b, 8))
	h, m, s, fsec := splitMicrosOfDay(us)
	return fmt.Sprintf("%02d:%02d:%s%s", h, m, appendSeconds(s, fsec), encodeTimezone(int(tz))), nil
}

// splitTimestamp decomposes microseconds-since-epoch into a day count and
// a microseconds-of-day value using floor-division semantics, so that a
// negative intraday remainder borrows one whole day rather than going
// negative.
func splitTimestamp(us int64) (days int64, usOfDay int64) {
	const usPerDay = 86400000000
	days = us / usPerDay
	usOfDay = us % usPerDay
	if usOfDay < 0 {
		usOfDay += usPerDay
		days--
	}
	return
}

// timestampSentinel matches PostgreSQL's int64 min/max used for
// 'infinity'/'-infinity' timestamps (not the int32 date sentinels).
const (
	timestampNegInf = int64(-9223372036854775808)
	timestampPosInf = int64(9223372036854775807)
)

func decodeTimestampCommon(raw int64, withZone bool) string {
	if raw == timestampNegInf {
		return "-infinity"
	}
	if raw == timestampPosInf {
		return "infinity"
	}
	days, usOfDay := splitTimestamp(raw)
	t := pgEpoch.AddDate(0, 0, int(days))
	h, m, s, fsec := splitMicrosOfDay(usOfDay)

	if !withZone {
		return fmt.Sprintf("%s %02d:%02d:%s", formatPgDate(t), h, m, appendSeconds(s, fsec))
	}

	abs := t.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
	local := abs.In(time.Local)
	_, offsetSec := local.Zone()
	ly, lm, ld := local.Date()
	lh, lmin, ls := local.Clock()
	datePart := formatPgDate(time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC))
	// storage-convention tz: positive means west of UTC, i.e. the
	// negation of Go's east-positive offset.
	return fmt.Sprintf("%s %02d:%02d:%s%s", datePart, lh, lmin, appendSeconds(ls, fsec), encodeTimezone(-offsetSec))
}

// decodeTimestamp decodes an 8-byte microseconds-since-epoch value,
// rendered in the PostgreSQL epoch's nominal UTC calendar with no zone
// conversion.
func decodeTimestamp(c *cursor) (string, error) {
	if err := c.alignTo(8); err != nil {
		return "", err
	}
	b, err := c.take(8)
	if err != nil {
		return "", err
	}
	return decodeTimestampCommon(int64(u64(b, 0)), false), nil
}

// decodeTimestampTZ decodes an 8-byte microseconds-since-epoch value,
// converted to the host's local zone rules with an appended offset.
func decodeTimestampTZ(c *cursor) (string, error) {
	if err := c.alignTo(8); err != nil {
		return "", err
	}
	b, err := c.take(8)
	if err != nil {
		return "", err
	}
	return decodeTimestampCommon(int64(u64(b, 0)), true), nil
}
