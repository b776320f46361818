package domain

import "time"

// Result is what GetPrices returns to a caller: the ordered bar table plus
// resolved symbol/provider and provenance counts.
//
// Invariant: FromCache + FromAPI == len(Bars).
type Result struct {
	Bars      []Bar
	Symbol    string
	Provider  ProviderID
	FromCache int
	FromAPI   int
	Start     time.Time
	End       time.Time
}
