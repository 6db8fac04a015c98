// Package symbols translates between the canonical "BASE/QUOTE" pair format
// used throughout the routing layer and the formats each venue expects.
package symbols

import (
	"fmt"
	"strings"
)

// Known quote currencies, longest first so concatenated symbols split
// unambiguously.
var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "EUR", "USD"}

// Split breaks a canonical "BASE/QUOTE" pair into its components.
func Split(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair %q, expected BASE/QUOTE", pair)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// Join builds a canonical pair from base and quote currencies.
func Join(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// ToVenue converts a canonical pair to the named venue's native format.
// Binance concatenates (BTCUSDT), KuCoin uses a dash (BTC-USDT), simulated
// venues accept the canonical form unchanged.
func ToVenue(venue, pair string) (string, error) {
	base, quote, err := Split(pair)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(venue) {
	case "binance":
		return base + quote, nil
	case "kucoin":
		return base + "-" + quote, nil
	default:
		return base + "/" + quote, nil
	}
}

// FromVenue converts a venue-native symbol back to the canonical pair.
func FromVenue(venue, sym string) (string, error) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	switch strings.ToLower(venue) {
	case "binance":
		for _, q := range quoteCurrencies {
			if strings.HasSuffix(sym, q) && len(sym) > len(q) {
				return sym[:len(sym)-len(q)] + "/" + q, nil
			}
		}
		return "", fmt.Errorf("cannot split binance symbol %q", sym)
	case "kucoin":
		parts := strings.Split(sym, "-")
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid kucoin symbol %q", sym)
		}
		return parts[0] + "/" + parts[1], nil
	default:
		if _, _, err := Split(sym); err != nil {
			return "", err
		}
		return sym, nil
	}
}
