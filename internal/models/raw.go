package models

// RawTransaction is one trade as reported by the transaction-data API.
// Numeric fields are left as text; the ingestor normalizes them.
type RawTransaction struct {
	Region         string
	RegionCode     string
	Type           string
	TradePrice     string
	Area           string
	BuildingYear   string
	Period         string
	FloorPlan      string
	RequestYear    int
	RequestQuarter int
}

// RawListing is one property card read from the listing source. Fields the
// card did not carry are nil or empty.
type RawListing struct {
	AskingPrice      *int64
	Area             *float64
	BuildingYear     *int
	MinutesToStation *int
	Floor            *int
	TotalFloors      *int
	SourceID         string
	PropertyName     string
	Region           string
	Address          string
	FloorPlan        string
	StationName      string
	SourceURL        string
}

// RegionSnapshot is everything the listing source returned for one region
// in one pass. Complete is true only when every result page was retrieved;
// absence from an incomplete snapshot says nothing about a listing.
type RegionSnapshot struct {
	Region       string
	Listings     []RawListing
	PagesFetched int
	PagesFailed  int
	Complete     bool
}
