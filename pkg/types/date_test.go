package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year)
	assert.Equal(t, time.March, d.Month)
	assert.Equal(t, 15, d.Day)

	_, err = ParseDate("15/03/2026")
	require.Error(t, err)
	_, err = ParseDate("2026-02-30")
	require.Error(t, err)
}

func TestDateArithmeticCrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, "2026-02-28", MustParseDate("2026-03-03").AddDays(-3).String())
	assert.Equal(t, "2025-12-31", MustParseDate("2026-01-01").AddDays(-1).String())
	assert.Equal(t, 7, MustParseDate("2026-03-15").DaysSince(MustParseDate("2026-03-08")))
	assert.Equal(t, "2024-02-29", NewDate(2024, time.March, 0).String())
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Renewal Date  `json:"renewal"`
		Trial   *Date `json:"trial,omitempty"`
	}
	out, err := json.Marshal(payload{Renewal: MustParseDate("2026-06-01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"renewal":"2026-06-01"}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"renewal":"2026-05-31","trial":"2026-05-20"}`), &in))
	assert.Equal(t, "2026-05-31", in.Renewal.String())
	require.NotNil(t, in.Trial)
	assert.Equal(t, "2026-05-20", in.Trial.String())

	require.Error(t, json.Unmarshal([]byte(`{"renewal":"tomorrow"}`), &in))
}

func TestDateScanValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-15", d.String())

	require.NoError(t, d.Scan("2026-03-16T00:00:00Z"))
	assert.Equal(t, "2026-03-16", d.String())

	require.NoError(t, d.Scan([]byte("2026-03-17")))
	assert.Equal(t, "2026-03-17", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	require.Error(t, d.Scan(42))

	v, err := MustParseDate("2099-12-31").Value()
	require.NoError(t, err)
	assert.Equal(t, "2099-12-31", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMidnightUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	m := MustParseDate("2026-03-15").Midnight(loc)
	assert.Equal(t, 0, m.Hour())
	assert.Equal(t, loc, m.Location())
}
