package places

// searchResponse mirrors the maps-search engine's reply. Only the fields the
// evidence pipeline needs are decoded.
type searchResponse struct {
	LocalResults []localResult `json:"local_results"`
}

type localResult struct {
	Title          string   `json:"title"`
	DataID         string   `json:"data_id"`
	PlaceID        string   `json:"place_id"`
	Address        string   `json:"address"`
	Type           string   `json:"type"`
	Rating         float64  `json:"rating"`
	Reviews        int      `json:"reviews"`
	Price          string   `json:"price"`
	Website        string   `json:"website"`
	GPSCoordinates gpsCoord `json:"gps_coordinates"`
}

type gpsCoord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
