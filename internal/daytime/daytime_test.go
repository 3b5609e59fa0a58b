package daytime_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/daytime"
)

func TestNewNormalizes(t *testing.T) {
	cases := []struct {
		h, m, s int
		want    string
	}{
		{0, 0, 0, "00:00:00"},
		{13, 37, 5, "13:37:05"},
		{25, 0, 0, "01:00:00"},
		{23, 59, 61, "00:00:01"},
		{-1, 0, 0, "23:00:00"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, daytime.New(c.h, c.m, c.s).String())
	}
}

func TestParse(t *testing.T) {
	d, err := daytime.Parse("09:08:07")
	require.NoError(t, err)
	require.Equal(t, 9, d.Hour())
	require.Equal(t, 8, d.Minute())
	require.Equal(t, 7, d.Second())

	// Trailing components default to zero.
	d, err = daytime.Parse("12")
	require.NoError(t, err)
	require.Equal(t, "12:00:00", d.String())

	d, err = daytime.Parse("12:30")
	require.NoError(t, err)
	require.Equal(t, "12:30:00", d.String())

	_, err = daytime.Parse("12:30:15:99")
	require.Error(t, err)
	_, err = daytime.Parse("noon")
	require.Error(t, err)
}

func TestStringParseRoundTrip(t *testing.T) {
	d := daytime.New(23, 4, 9)
	back, err := daytime.Parse(d.String())
	require.NoError(t, err)
	require.Equal(t, d, back)
}

func TestArithmeticWraps(t *testing.T) {
	d := daytime.New(23, 30, 0).Add(daytime.New(1, 0, 0))
	require.Equal(t, "00:30:00", d.String())

	d = daytime.New(0, 15, 0).Sub(daytime.New(0, 30, 0))
	require.Equal(t, "23:45:00", d.String())
}

func TestNowIsInRange(t *testing.T) {
	d := daytime.Now()
	require.GreaterOrEqual(t, d.Seconds(), 0)
	require.Less(t, d.Seconds(), 24*3600)
}
