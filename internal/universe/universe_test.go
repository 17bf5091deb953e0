package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarketOf(t *testing.T) {
	tests := []struct {
		ticker   string
		expected Market
	}{
		{"069500", MarketKR},
		{"102110", MarketKR},
		{"SPY", MarketUS},
		{"EWY", MarketUS},
		{"12345", MarketUS},   // five digits is not a KRX code
		{"1234567", MarketUS}, // seven digits is not a KRX code
		{"12345A", MarketUS},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MarketOf(tt.ticker), "ticker %s", tt.ticker)
	}
}

func TestAllTickers(t *testing.T) {
	tickers := AllTickers()
	assert.Greater(t, len(tickers), 100)

	// Sorted and deduplicated.
	seen := make(map[string]struct{})
	for i, tk := range tickers {
		if i > 0 {
			assert.Less(t, tickers[i-1], tk, "universe must be sorted")
		}
		_, dup := seen[tk]
		assert.False(t, dup, "duplicate ticker %s", tk)
		seen[tk] = struct{}{}
	}
}

func TestThemeForCode(t *testing.T) {
	assert.Equal(t, ThemeTechnology, ThemeForCode(2))
	assert.Equal(t, ThemeEnergy, ThemeForCode(3))
	assert.Equal(t, ThemeHealthcare, ThemeForCode(4))
	assert.Equal(t, ThemeNone, ThemeForCode(1), "code 1 means no preference")
	assert.Equal(t, ThemeNone, ThemeForCode(99))
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "Technology", CategoryOf("QQQ"))
	assert.Equal(t, "Broad Market", CategoryOf("069500"))
	assert.Equal(t, "Bonds", CategoryOf("TLT"))
	assert.Equal(t, "Commodities", CategoryOf("GLD"))
	assert.Equal(t, "Others", CategoryOf("ZZZZ"))
}

func TestFundFactsDeterministic(t *testing.T) {
	aum1, er1 := FundFacts("UNKNOWN1")
	aum2, er2 := FundFacts("UNKNOWN1")
	assert.Equal(t, aum1, aum2)
	assert.Equal(t, er1, er2)

	assert.GreaterOrEqual(t, aum1, 1000.0)
	assert.Less(t, aum1, 50000.0)
	assert.GreaterOrEqual(t, er1, 0.05)
	assert.LessOrEqual(t, er1, 0.75)
}
