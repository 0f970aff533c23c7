package quote

// QuoteEnvelope is the response envelope of the v7 quote endpoint.
type QuoteEnvelope struct {
	QuoteResponse struct {
		Result []RawQuote  `json:"result"`
		Error  *QuoteError `json:"error"`
	} `json:"quoteResponse"`
}

type QuoteError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// RawQuote holds the provider fields we consume. Pointers distinguish
// "absent" from zero.
type RawQuote struct {
	Symbol                     string   `json:"symbol"`
	ShortName                  string   `json:"shortName"`
	LongName                   string   `json:"longName"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        *int64   `json:"regularMarketVolume"`
	MarketCap                  *float64 `json:"marketCap"`
}

// Quote is a validated provider quote.
type Quote struct {
	Symbol        string
	DisplayName   string
	LastPrice     float64
	PreviousClose float64 // 0 when the provider did not send it
	ChangePercent float64
	Volume        int64
	MarketCap     *float64
}
