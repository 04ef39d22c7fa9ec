package packet

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatGrouped(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		want     string
	}{
		{1234.5, 2, "1,234.50"},
		{1234567.891, 3, "1,234,567.891"},
		{0, 2, "0.00"},
		{1000, 0, "1,000"},
		{999.999, 2, "1,000.00"},
		{-98765.4, 1, "-98,765.4"},
		{12, -1, "12"},
		{-0.001, 2, "0.00"},
		{-0.4, 0, "0"},
		{math.Copysign(0, -1), 2, "0.00"},
		{-0.01, 2, "-0.01"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatGrouped(c.v, c.decimals), "%v/%d", c.v, c.decimals)
	}
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		sec  int64
		want string
	}{
		{1700000000, "14 Nov 2023, 22:13:20 PM"},
		{1699935200, "14 Nov 2023, 04:13:20 AM"},
		{1704153600, "02 Jan 2024, 00:00:00 AM"},
		{1717545600, "05 June 2024, 00:00:00 AM"},
		{1720000000, "03 July 2024, 09:46:40 AM"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatTime(c.sec, time.UTC), "sec %d", c.sec)
	}
}

func TestFormatTime_Zone(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, "15 Nov 2023, 03:43:20 AM", FormatTime(1700000000, kolkata))
}

func TestFormatKind_Apply(t *testing.T) {
	assert.Equal(t, "1,234.568", FormatMoney.apply(1234.5678, 3, time.UTC))
	assert.Equal(t, "5.00", FormatPercent.apply(int32(5), 7, time.UTC))
	assert.Equal(t, "1,200", FormatCount.apply(int32(1200), 2, time.UTC))
	assert.Equal(t, "14 Nov 2023, 22:13:20 PM", FormatTimestamp.apply(int32(1700000000), 2, time.UTC))
	assert.Equal(t, uint8(9), FormatRaw.apply(uint8(9), 2, time.UTC))
}

func TestFormatKind_Text(t *testing.T) {
	for kind := range formatKindNames {
		b, err := kind.MarshalText()
		require.NoError(t, err)
		var got FormatKind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, kind, got)
	}

	var k FormatKind
	assert.Error(t, k.UnmarshalText([]byte("fancy")))
	require.NoError(t, k.UnmarshalText([]byte("")))
	assert.Equal(t, FormatRaw, k)
}
