package model

// Instrument is a tradeable symbol as listed by the surrounding UI layer.
type Instrument struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
}

// Key returns the partition key for this instrument.
func (i *Instrument) Key() string {
	return i.Symbol
}
