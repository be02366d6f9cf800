package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidebetlabs/relayer/errcode"
)

func TestParseAddressParam(t *testing.T) {
	good := "0x1111111111111111111111111111111111111111"
	addr, err := parseAddressParam(good, "market")
	require.NoError(t, err)
	assert.Equal(t, good, addr)

	mixed := "0xAbCd111111111111111111111111111111111111"
	_, err = parseAddressParam(mixed, "market")
	assert.NoError(t, err, "mixed case must be accepted")

	for _, bad := range []string{"", "0x123", good + "1", "1111111111111111111111111111111111111111", "0xgg11111111111111111111111111111111111111"} {
		_, err := parseAddressParam(bad, "market")
		assert.True(t, errcode.Is(err, errcode.Validation), "expected validation error for %q", bad)
	}
}

func TestParseSignature(t *testing.T) {
	raw := "0x" + strings.Repeat("ab", 65)
	sig, err := parseSignature(raw)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Equal(t, byte(0xab), sig[0])

	_, err = parseSignature("0xabcd")
	assert.True(t, errcode.Is(err, errcode.Validation))
}

func TestParseOutcome(t *testing.T) {
	v, err := parseOutcome("1")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)

	v, err = parseOutcome("0")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v)

	for _, bad := range []string{"", "2", "yes", "01"} {
		_, err := parseOutcome(bad)
		assert.True(t, errcode.Is(err, errcode.Validation), "expected validation error for %q", bad)
	}
}

func TestParseNonce(t *testing.T) {
	n, err := parseNonce("12345678901234567890123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890123456789012345678901234567890", n.String())

	for _, bad := range []string{"", "-1", "0x10", "ten"} {
		_, err := parseNonce(bad)
		assert.True(t, errcode.Is(err, errcode.Validation), "expected validation error for %q", bad)
	}
}

func TestParseStatusQuery(t *testing.T) {
	status, err := parseStatusQuery("")
	require.NoError(t, err)
	assert.Nil(t, status)

	status, err = parseStatusQuery("2")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "resolved", status.String())

	for _, bad := range []string{"-1", "5", "open"} {
		_, err := parseStatusQuery(bad)
		assert.True(t, errcode.Is(err, errcode.Validation), "expected validation error for %q", bad)
	}
}

func TestParseLimitOffset(t *testing.T) {
	limit, offset, err := parseLimitOffset("", "")
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset, err = parseLimitOffset("100", "40")
	require.NoError(t, err)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 40, offset)

	_, _, err = parseLimitOffset("0", "")
	assert.True(t, errcode.Is(err, errcode.Validation))
	_, _, err = parseLimitOffset("101", "")
	assert.True(t, errcode.Is(err, errcode.Validation))
	_, _, err = parseLimitOffset("10", "-1")
	assert.True(t, errcode.Is(err, errcode.Validation))
}

func TestParseThresholdPercent(t *testing.T) {
	for _, ok := range []int{51, 75, 99} {
		v, err := parseThresholdPercent(ok)
		require.NoError(t, err)
		assert.Equal(t, uint8(ok), v)
	}
	for _, bad := range []int{0, 50, 100, -1} {
		_, err := parseThresholdPercent(bad)
		assert.True(t, errcode.Is(err, errcode.Validation))
	}
}
