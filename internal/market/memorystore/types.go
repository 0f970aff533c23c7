package memorystore

import "time"

// CircuitBand is the advisory price band around the previous close.
const CircuitBand = 0.05

// Quote is the normalized, latest known state of one instrument.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	LastPrice     float64   `json:"lastPrice"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	MarketCap     *float64  `json:"marketCap"`
	LowerCircuit  *float64  `json:"lowerCircuit"`
	UpperCircuit  *float64  `json:"upperCircuit"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MergeResult reports what a merge did.
type MergeResult struct {
	Updated []Quote // every quote overwritten by the merge
	Changed []Quote // subset whose last price is new
}

func (q Quote) clone() Quote {
	q.MarketCap = copyFloat(q.MarketCap)
	q.LowerCircuit = copyFloat(q.LowerCircuit)
	q.UpperCircuit = copyFloat(q.UpperCircuit)
	return q
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
