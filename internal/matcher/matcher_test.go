package matcher

import (
	"math/big"
	"testing"

	"github.com/GoSTEAN/velo-sub001/internal/chain"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	receiver = "0x04A1B2c3"
	sender   = "0x0777"
	selector = "0x99cd8bde557814842a3121e8ddfd433a539b8c9f14bf31ebf108d12e6196e9"
)

var onePercent = big.NewRat(1, 100)

func legacyTransfer(tx string, block uint64, to, low string) chain.Event {
	return chain.Event{
		Keys:            []string{selector},
		Data:            []string{sender, to, low, "0x0"},
		BlockNumber:     block,
		TransactionHash: tx,
	}
}

func keyedTransfer(tx string, block uint64, to, low, high string) chain.Event {
	return chain.Event{
		Keys:            []string{selector, sender, to},
		Data:            []string{low, high},
		BlockNumber:     block,
		TransactionHash: tx,
	}
}

func amount(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := ParseAmount(s)
	require.NoError(t, err)
	return v
}

func TestDecodeTransfer(t *testing.T) {
	t.Run("Legacy", func(t *testing.T) {
		tr, err := DecodeTransfer(legacyTransfer("0xa", 7, "0x00AbC", "1000"))
		require.NoError(t, err)
		assert.Equal(t, "0xabc", tr.To)
		assert.Equal(t, "0x777", tr.From)
		assert.Equal(t, uint64(1000), tr.Amount.Uint64())
		assert.Equal(t, uint64(7), tr.BlockNumber)
	})

	t.Run("Keyed", func(t *testing.T) {
		tr, err := DecodeTransfer(keyedTransfer("0xb", 8, "0xabc", "0x3e8", "0x0"))
		require.NoError(t, err)
		assert.Equal(t, "0xabc", tr.To)
		assert.Equal(t, uint64(1000), tr.Amount.Uint64())
	})

	t.Run("HighLimb", func(t *testing.T) {
		tr, err := DecodeTransfer(keyedTransfer("0xc", 1, "0xabc", "0x5", "0x1"))
		require.NoError(t, err)

		want := new(big.Int).Lsh(big.NewInt(1), 128)
		want.Add(want, big.NewInt(5))
		assert.Equal(t, want.String(), tr.Amount.Dec())
	})

	t.Run("Malformed", func(t *testing.T) {
		cases := map[string]chain.Event{
			"short data":     {Keys: []string{selector}, Data: []string{sender, receiver, "1"}},
			"no data":        {Keys: []string{selector}},
			"bad hex":        legacyTransfer("0x1", 1, receiver, "0xZZ"),
			"bad decimal":    legacyTransfer("0x1", 1, receiver, "12a"),
			"limb too wide":  legacyTransfer("0x1", 1, receiver, "0x1"+"00000000000000000000000000000000"),
			"bad recipient":  legacyTransfer("0x1", 1, "receiver", "1"),
			"empty low limb": legacyTransfer("0x1", 1, receiver, ""),
		}
		for name, ev := range cases {
			_, err := DecodeTransfer(ev)
			assert.ErrorIs(t, err, ErrMalformed, name)
		}
	})
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.Dec())

	for _, bad := range []string{"", "0", "-5", "1.5", "0x10", "1e18", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestMatch(t *testing.T) {
	expected := "1000000000000000000"

	t.Run("ExactAmount", func(t *testing.T) {
		events := []chain.Event{legacyTransfer("0x1", 10, receiver, expected)}
		res := Match(events, amount(t, expected), receiver, onePercent)

		require.NotNil(t, res.Match)
		assert.Equal(t, "0x1", res.Match.TransactionHash)
		assert.Nil(t, res.Closest)
		assert.Equal(t, 1, res.Scanned)
		assert.Equal(t, 1, res.ToReceiver)
	})

	t.Run("OnePercentBoundaryInclusive", func(t *testing.T) {
		low := []chain.Event{legacyTransfer("0x1", 10, receiver, "990000000000000000")}
		high := []chain.Event{legacyTransfer("0x2", 10, receiver, "1010000000000000000")}

		assert.NotNil(t, Match(low, amount(t, expected), receiver, onePercent).Match)
		assert.NotNil(t, Match(high, amount(t, expected), receiver, onePercent).Match)
	})

	t.Run("JustOutsideToleranceRejected", func(t *testing.T) {
		events := []chain.Event{legacyTransfer("0x1", 10, receiver, "1010100000000000000")}
		res := Match(events, amount(t, expected), receiver, onePercent)

		assert.Nil(t, res.Match)
		require.NotNil(t, res.Closest)
		assert.Equal(t, "101/10000", res.Closest.RelativeDifference.String())
	})

	t.Run("MalformedSkipped", func(t *testing.T) {
		events := []chain.Event{
			{Keys: []string{selector}, Data: []string{"0x1"}, TransactionHash: "0xbad"},
			legacyTransfer("0xgood", 11, receiver, expected),
		}
		res := Match(events, amount(t, expected), receiver, onePercent)

		require.NotNil(t, res.Match)
		assert.Equal(t, "0xgood", res.Match.TransactionHash)
		assert.Equal(t, 1, res.Malformed)
		assert.Equal(t, 2, res.Scanned)
	})

	t.Run("FirstMatchWins", func(t *testing.T) {
		events := []chain.Event{
			legacyTransfer("0xfirst", 10, receiver, "1005000000000000000"),
			legacyTransfer("0xexact", 11, receiver, expected),
		}
		res := Match(events, amount(t, expected), receiver, onePercent)

		require.NotNil(t, res.Match)
		assert.Equal(t, "0xfirst", res.Match.TransactionHash)
	})

	t.Run("ReceiverCaseAndPaddingInsensitive", func(t *testing.T) {
		events := []chain.Event{legacyTransfer("0x1", 10, "0x0000000004a1b2C3", expected)}
		res := Match(events, amount(t, expected), "0x4A1B2C3", onePercent)
		assert.NotNil(t, res.Match)
	})

	t.Run("OtherReceiverIgnored", func(t *testing.T) {
		events := []chain.Event{legacyTransfer("0x1", 10, "0xdead", expected)}
		res := Match(events, amount(t, expected), receiver, onePercent)

		assert.Nil(t, res.Match)
		assert.Nil(t, res.Closest)
		assert.Equal(t, 0, res.ToReceiver)
		assert.Equal(t, 1, res.Scanned)
	})

	t.Run("ClosestCandidate", func(t *testing.T) {
		events := []chain.Event{
			legacyTransfer("0xfar", 10, receiver, "500000000000000000"),
			legacyTransfer("0xnear", 11, receiver, "950000000000000000"),
			legacyTransfer("0xover", 12, receiver, "1100000000000000000"),
		}
		res := Match(events, amount(t, expected), receiver, onePercent)

		assert.Nil(t, res.Match)
		require.NotNil(t, res.Closest)
		assert.Equal(t, "0xnear", res.Closest.Transfer.TransactionHash)
		assert.Equal(t, "-1/20", res.Closest.RelativeDifference.String())
		assert.Equal(t, 3, res.ToReceiver)
	})

	t.Run("HighLimbAmount", func(t *testing.T) {
		twoTo128 := new(big.Int).Lsh(big.NewInt(1), 128)
		events := []chain.Event{keyedTransfer("0x1", 10, receiver, "0x0", "0x1")}
		res := Match(events, amount(t, twoTo128.String()), receiver, new(big.Rat))

		assert.NotNil(t, res.Match)
	})

	t.Run("ZeroTolerance", func(t *testing.T) {
		events := []chain.Event{
			legacyTransfer("0x1", 10, receiver, "999999999999999999"),
			legacyTransfer("0x2", 11, receiver, expected),
		}
		res := Match(events, amount(t, expected), receiver, new(big.Rat))

		require.NotNil(t, res.Match)
		assert.Equal(t, "0x2", res.Match.TransactionHash)
	})
}
