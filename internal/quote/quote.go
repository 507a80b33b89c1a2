// internal/quote/quote.go

// Package quote описывает котировку и кэш последних котировок по символу.
package quote

import "strings"

// Quote — последняя известная котировка символа.
// Передаётся по значению; кэш хранит копии и заменяет запись целиком.
type Quote struct {
	ID       string  `json:"id"`
	Price    float32 `json:"price"`
	Time     int64   `json:"time"` // unix ms, служит маркером порядка
	Currency string  `json:"currency,omitempty"`
	Exchange string  `json:"exchange,omitempty"`

	QuoteType   string `json:"quoteType,omitempty"`
	MarketHours string `json:"marketHours,omitempty"`

	ChangePercent float32 `json:"changePercent"`
	DayVolume     int64   `json:"dayVolume,omitempty"`
	DayHigh       float32 `json:"dayHigh,omitempty"`
	DayLow        float32 `json:"dayLow,omitempty"`
	Change        float32 `json:"change"`
	ShortName     string  `json:"shortName,omitempty"`
	OpenPrice     float32 `json:"openPrice,omitempty"`
	PreviousClose float32 `json:"previousClose,omitempty"`
	LastSize      int64   `json:"lastSize,omitempty"`
	PriceHint     int64   `json:"priceHint,omitempty"`

	Bid     float32 `json:"bid,omitempty"`
	BidSize int64   `json:"bidSize,omitempty"`
	Ask     float32 `json:"ask,omitempty"`
	AskSize int64   `json:"askSize,omitempty"`

	// опционы
	ExpireDate       int64   `json:"expireDate,omitempty"`
	StrikePrice      float32 `json:"strikePrice,omitempty"`
	UnderlyingSymbol string  `json:"underlyingSymbol,omitempty"`
	OpenInterest     int64   `json:"openInterest,omitempty"`
	OptionsType      string  `json:"optionsType,omitempty"`
	MiniOption       int64   `json:"miniOption,omitempty"`

	// криптовалюты
	Vol24Hr           int64   `json:"vol_24hr,omitempty"`
	VolAllCurrencies  int64   `json:"volAllCurrencies,omitempty"`
	FromCurrency      string  `json:"fromcurrency,omitempty"`
	LastMarket        string  `json:"lastMarket,omitempty"`
	CirculatingSupply float64 `json:"circulatingSupply,omitempty"`
	MarketCap         float64 `json:"marketCap,omitempty"`
}

// Normalize приводит символ к каноническому виду: без пробелов, в верхнем регистре.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
