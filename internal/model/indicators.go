package model

// Bands holds the latest Bollinger Band values.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Indicators is the snapshot a verdict is derived from.
type Indicators struct {
	Price float64
	RPP   float64
	Bands Bands
}
