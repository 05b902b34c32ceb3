package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		currency Currency
		fails    bool
	}{
		{name: "plain integer", raw: "500", want: 500},
		{name: "dot decimal", raw: "12.50", want: 12.5},
		{name: "comma decimal", raw: "12,50", want: 12.5},
		{name: "space thousands with comma decimal", raw: "1 234,56", want: 1234.56},
		{name: "nbsp thousands", raw: "1 234,56", want: 1234.56},
		{name: "comma thousands", raw: "1,234", want: 1234},
		{name: "comma thousands long", raw: "1,234,567", want: 1234567},
		{name: "dot thousands", raw: "1.234.567", want: 1234567},
		{name: "dollar prefix", raw: "$12.50", currency: CurrencyUSD, want: 12.5},
		{name: "dollar suffix", raw: "15$", currency: CurrencyUSD, want: 15},
		{name: "ruble symbol", raw: "950 ₽", currency: CurrencyRUB, want: 950},
		{name: "yuan symbol", raw: "¥8.80", currency: CurrencyCNY, want: 8.8},
		{name: "ruble word", raw: "950 руб", currency: CurrencyRUB, want: 950},
		{name: "unit suffix", raw: "500 шт", want: 500},
		{name: "free text", raw: "договорная", fails: true},
		{name: "negative", raw: "-5", fails: true},
		{name: "empty", raw: "", fails: true},
		{name: "dashy range", raw: "5-7", fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDecimal(tt.raw)
			if tt.fails {
				assert.True(t, got.failed, "expected parse failure for %q", tt.raw)
				assert.Nil(t, got.value)
				return
			}
			require.False(t, got.failed, "unexpected parse failure for %q", tt.raw)
			require.NotNil(t, got.value)
			assert.InDelta(t, tt.want, *got.value, 1e-9)
			assert.Equal(t, tt.currency, got.currency)
		})
	}
}

func TestParseDecimalUnknownSymbol(t *testing.T) {
	// Thousands separators parse fine; the unrecognized currency symbol is
	// surfaced separately instead of failing the number.
	got := parseDecimal("1 234,56 ₱")
	require.False(t, got.failed)
	require.NotNil(t, got.value)
	assert.InDelta(t, 1234.56, *got.value, 1e-9)
	assert.Equal(t, Currency(""), got.currency)
	assert.Equal(t, "₱", got.unknownSymbol)
}

func TestParseQuantity(t *testing.T) {
	q, err := parseQuantity("1 000")
	require.NoError(t, err)
	assert.Equal(t, 1000, *q)

	_, err = parseQuantity("12.5")
	assert.Error(t, err)

	_, err = parseQuantity("Образец")
	assert.Error(t, err)
}

func TestParseCurrencyWord(t *testing.T) {
	assert.Equal(t, CurrencyUSD, parseCurrencyWord("USD"))
	assert.Equal(t, CurrencyUSD, parseCurrencyWord("доллары США"))
	assert.Equal(t, CurrencyRUB, parseCurrencyWord("руб."))
	assert.Equal(t, CurrencyCNY, parseCurrencyWord("юани"))
	assert.Equal(t, CurrencyAED, parseCurrencyWord("AED"))
	assert.Equal(t, Currency(""), parseCurrencyWord("tugrik"))
	assert.Equal(t, Currency(""), parseCurrencyWord(""))
}
