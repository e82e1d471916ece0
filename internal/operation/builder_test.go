package operation

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerctl/internal/prompt"
)

var (
	coinA = "0x" + strings.Repeat("a", 64)
	coinB = "0x" + strings.Repeat("b", 64)
	coinC = "0x" + strings.Repeat("C", 64)
	dest  = "0x" + strings.Repeat("1", 64)
)

var testCommands = Commands{
	Balance:  "balance",
	Coins:    "coins",
	Transfer: "transfer",
	Split:    "split",
	Merge:    "merge",
	MergeAll: "merge --all",
}

func newTestBuilder(publicRPC bool) *Builder {
	return NewBuilder(testCommands, 8, Target{
		Executable: "/bin/client",
		Wallet:     "main",
		ConfigPath: "/w/main/.config",
		PublicRPC:  publicRPC,
	})
}

func TestValidateIdentifier(t *testing.T) {
	id, err := ValidateIdentifier("  " + coinA + "\n")
	require.NoError(t, err)
	assert.Equal(t, coinA, id)

	for _, bad := range []string{
		"",
		coinA[2:],
		"0x" + strings.Repeat("a", 63),
		"0x" + strings.Repeat("a", 65),
		"0x" + strings.Repeat("g", 64),
		"0X" + strings.Repeat("a", 64),
	} {
		_, err := ValidateIdentifier(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifierFormat, bad)
	}
}

func TestQuery(t *testing.T) {
	b := newTestBuilder(true)

	op, err := b.Query(KindBalance)
	require.NoError(t, err)
	assert.Equal(t, []string{"balance", "--config", "/w/main/.config", "--public-rpc"}, op.Argv())
	assert.True(t, op.Confirmed())

	_, err = b.Query(KindTransfer)
	assert.Error(t, err)
}

func TestTransfer(t *testing.T) {
	b := newTestBuilder(false)

	op, err := b.Transfer(dest, coinA)
	require.NoError(t, err)
	assert.Equal(t, []string{"transfer", dest, coinA, "--config", "/w/main/.config"}, op.Argv())
	assert.False(t, op.Confirmed())
	assert.NotEqual(t, uuid.Nil, op.ID)

	_, err = b.Transfer("nope", coinA)
	assert.ErrorIs(t, err, ErrInvalidIdentifierFormat)
	assert.True(t, IsValidation(err))

	_, err = b.Transfer(dest, "nope")
	assert.ErrorIs(t, err, ErrInvalidIdentifierFormat)
}

func TestSplitOperations(t *testing.T) {
	b := newTestBuilder(false)

	op, err := b.SplitEqual(coinA, dec("10"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"split", coinA, "3.33333333", "3.33333333", "3.33333334", "--config", "/w/main/.config"}, op.Argv())

	op, err = b.SplitPercentages(coinA, dec("200"), decs("50", "30", "20"))
	require.NoError(t, err)
	assert.Equal(t, []string{"split", coinA, "100", "60", "40"}, op.Args)

	op, err = b.SplitAmounts(coinA, dec("3"), decs("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"split", coinA, "1", "2"}, op.Args)

	op, err = b.SplitPercentages(coinA, dec("7"), decs("100"))
	require.NoError(t, err)
	assert.Equal(t, []string{"split", coinA, "7"}, op.Args)

	_, err = b.SplitEqual("0x12", dec("10"), 3)
	assert.ErrorIs(t, err, ErrInvalidIdentifierFormat)
	_, err = b.SplitAmounts(coinA, dec("3"), decs("1", "1"))
	assert.True(t, IsValidation(err))
}

func TestMerge(t *testing.T) {
	b := newTestBuilder(false)
	available := []Coin{{ID: coinA}, {ID: coinB}}

	op, err := b.Merge(coinA, coinB, available)
	require.NoError(t, err)
	assert.Equal(t, []string{"merge", coinA, coinB, "--config", "/w/main/.config"}, op.Argv())

	_, err = b.Merge(coinA, "0x"+strings.ToUpper(coinA[2:]), available)
	assert.ErrorIs(t, err, ErrDuplicateCoin)

	_, err = b.Merge(coinA, coinC, available)
	assert.ErrorIs(t, err, ErrUnknownCoin)

	_, err = b.Merge(coinA, coinB, available[:1])
	assert.ErrorIs(t, err, ErrInsufficientCoins)
	assert.False(t, IsValidation(err))

	_, err = b.Merge(coinA, "bad", available)
	assert.ErrorIs(t, err, ErrInvalidIdentifierFormat)
}

func TestMergeable(t *testing.T) {
	assert.NoError(t, Mergeable([]Coin{{ID: coinA}, {ID: coinB}}))
	assert.ErrorIs(t, Mergeable([]Coin{{ID: coinA}}), ErrInsufficientCoins)
	assert.ErrorIs(t, Mergeable(nil), ErrInsufficientCoins)
}

func TestMergeAll(t *testing.T) {
	b := newTestBuilder(true)

	op, err := b.MergeAll([]Coin{{ID: coinA}, {ID: coinB}, {ID: coinC}})
	require.NoError(t, err)
	assert.Equal(t, []string{"merge", "--all", "--config", "/w/main/.config", "--public-rpc"}, op.Argv())
	assert.Len(t, op.Coins, 3)

	_, err = b.MergeAll(nil)
	assert.ErrorIs(t, err, ErrInsufficientCoins)
}

func TestEmptyVerbFallsBackToKind(t *testing.T) {
	b := NewBuilder(Commands{}, 8, Target{ConfigPath: "c"})
	op, err := b.Query(KindCoins)
	require.NoError(t, err)
	assert.Equal(t, []string{"coins", "--config", "c"}, op.Argv())
}

func TestFinalize(t *testing.T) {
	b := newTestBuilder(false)
	op, err := b.Transfer(dest, coinA)
	require.NoError(t, err)

	var out bytes.Buffer
	final, err := Finalize(op, prompt.NewScript("y"), &out)
	require.NoError(t, err)
	assert.True(t, final.Confirmed())
	assert.False(t, op.Confirmed(), "original must stay unconfirmed")
	assert.Contains(t, out.String(), "/bin/client transfer "+dest)

	_, err = Finalize(op, prompt.NewScript("n"), io.Discard)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	_, err = Finalize(op, prompt.NewScript(), io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSummaryListsParts(t *testing.T) {
	op, err := newTestBuilder(false).SplitEqual(coinA, dec("10"), 3)
	require.NoError(t, err)

	s := op.Summary()
	assert.Contains(t, s, "Operation: split")
	assert.Contains(t, s, "Wallet:    main")
	assert.Contains(t, s, "3.33333334")
}
