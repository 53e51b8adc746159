package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Point is one observation of a daily price series.
type Point struct {
	Time  time.Time `json:"ds"`
	Value float64   `json:"y"`
}

// Series is an ascending, duplicate-free sequence of points.
type Series []Point

// Last returns the most recent point. The series must not be empty.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// Times returns the timestamps of the series.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Time
	}
	return out
}

// Values returns the observed values of the series.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
