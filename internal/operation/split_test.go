package operation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

func strs(ds []decimal.Decimal) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 1.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec("1.5")))

	for _, bad := range []string{"", "0", "-1", "abc", "1.2.3"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestParseAmountList(t *testing.T) {
	got, err := ParseAmountList("1, 2.5,3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2.5", "3"}, strs(got))

	_, err = ParseAmountList("1,,2")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSplitEqual(t *testing.T) {
	parts, err := SplitEqual(dec("10"), 3, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.33333333", "3.33333333", "3.33333334"}, strs(parts))
	assert.True(t, Sum(parts).Equal(dec("10")))

	parts, err = SplitEqual(dec("1"), 4, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.25", "0.25", "0.25", "0.25"}, strs(parts))
}

func TestSplitEqualBounds(t *testing.T) {
	_, err := SplitEqual(dec("10"), 1, 8)
	assert.ErrorIs(t, err, ErrInvalidPartCount)

	_, err = SplitEqual(dec("10"), 101, 8)
	assert.ErrorIs(t, err, ErrInvalidPartCount)

	_, err = SplitEqual(dec("0"), 2, 8)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SplitEqual(dec("0.00000001"), 3, 8)
	assert.ErrorIs(t, err, ErrPartTooSmall)
}

func TestSplitAmounts(t *testing.T) {
	parts, err := SplitAmounts(dec("10"), decs("2.5", "7.5"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2.5", "7.5"}, strs(parts))

	_, err = SplitAmounts(dec("10"), decs("2.5", "7"))
	assert.ErrorIs(t, err, ErrSumMismatch)

	parts, err = SplitAmounts(dec("10"), decs("10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, strs(parts))

	_, err = SplitAmounts(dec("10"), nil)
	assert.ErrorIs(t, err, ErrInvalidPartCount)

	// Within tolerance.
	_, err = SplitAmounts(dec("10"), decs("5", "5.0000000000001"))
	assert.NoError(t, err)
}

func TestSplitPercentages(t *testing.T) {
	parts, err := SplitPercentages(dec("200"), decs("50", "30", "20"), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "60", "40"}, strs(parts))

	parts, err = SplitPercentages(dec("100"), decs("33.33", "33.33", "33.34"), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, strs(parts))
	assert.True(t, Sum(parts).Equal(dec("100")))

	parts, err = SplitPercentages(dec("1"), decs("33.333333333333", "33.333333333333", "33.333333333334"), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.3333", "0.3333", "0.3334"}, strs(parts))

	parts, err = SplitPercentages(dec("42.5"), decs("100"), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"42.5"}, strs(parts))
}

func TestSplitPercentagesErrors(t *testing.T) {
	_, err := SplitPercentages(dec("100"), decs("50", "40"), 8)
	assert.ErrorIs(t, err, ErrPercentageSumMismatch)

	_, err = SplitPercentages(dec("100"), decs("100", "0"), 8)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SplitPercentages(dec("0.01"), decs("0.5", "99.5"), 2)
	assert.ErrorIs(t, err, ErrPartTooSmall)
}
