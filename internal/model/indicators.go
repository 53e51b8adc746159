package model

// Indicators holds technical context computed from the fetched closes.
type Indicators struct {
	MA50        float64 `json:"ma50"`
	MA200       float64 `json:"ma200"`
	RSI14       float64 `json:"rsi14"`
	High52w     float64 `json:"high_52w"`
	Low52w      float64 `json:"low_52w"`
	Position52w float64 `json:"position_52w"` // 0.0 ~ 1.0
}
