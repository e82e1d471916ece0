package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoins(t *testing.T) {
	output := `Coins in wallet:
  ` + coinA + `   12.5 LGR
  ` + coinB + ` balance: 3
  ` + coinA + `   12.5 LGR
note: nothing else here 42
` + coinC

	coins := ParseCoins(output)
	require.Len(t, coins, 3)

	assert.Equal(t, coinA, coins[0].ID)
	assert.True(t, coins[0].HasAmount)
	assert.True(t, coins[0].Amount.Equal(dec("12.5")))

	assert.Equal(t, coinB, coins[1].ID)
	assert.True(t, coins[1].Amount.Equal(dec("3")))

	assert.Equal(t, coinC, coins[2].ID)
	assert.False(t, coins[2].HasAmount)
}

func TestParseCoinsIgnoresLongerHex(t *testing.T) {
	coins := ParseCoins("0x" + "ab" + coinA[2:] + "\nnothing")
	assert.Empty(t, coins)
}

func TestParseCoinsSharedLine(t *testing.T) {
	coins := ParseCoins(coinA + " -> " + coinB + " 7")
	require.Len(t, coins, 2)
	assert.False(t, coins[0].HasAmount)
	assert.False(t, coins[1].HasAmount)
}

func TestFindCoin(t *testing.T) {
	coins := []Coin{{ID: coinA}}
	_, ok := FindCoin(coins, "0x"+"A"+coinA[3:])
	assert.True(t, ok)
	_, ok = FindCoin(coins, coinB)
	assert.False(t, ok)
}
