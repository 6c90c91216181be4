package model

// ResolvedAddress is a geocoded Australian address. It identifies the subject
// of every downstream lookup and is not modified after geocoding.
type ResolvedAddress struct {
	Query       string  `json:"query"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Suburb      string  `json:"suburb,omitempty"`
	State       string  `json:"state,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	LGA         string  `json:"lga,omitempty"`
}
