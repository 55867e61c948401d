package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar day with no time or zone component. It encodes as
// YYYY-MM-DD in JSON, text and SQL.
type Date struct {
	civil.Date
}

// NewDate builds a Date from its parts. Out-of-range parts normalize the
// same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day t falls on in t's own location.
func DateOf(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return Date{d}, nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// AddDays returns the date n calendar days later (earlier when n < 0).
func (d Date) AddDays(n int) Date {
	return Date{d.Date.AddDays(n)}
}

// DaysSince returns the signed number of days from s to d.
func (d Date) DaysSince(s Date) int {
	return d.Date.DaysSince(s.Date)
}

func (d Date) Before(o Date) bool { return d.Date.Before(o.Date) }

func (d Date) After(o Date) bool { return d.Date.After(o.Date) }

func (d Date) Equal(o Date) bool { return d.Date == o.Date }

// Midnight returns the start of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return d.Date.In(loc)
}

// GormDataType maps the type onto a DATE column.
func (Date) GormDataType() string {
	return "date"
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns on Postgres and SQLite.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = Date{civil.DateOf(v)}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("date: unsupported scan type %T", value)
	}
}

func (d *Date) scanString(raw string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) > len("2006-01-02") {
		raw = raw[:len("2006-01-02")]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
