package models

import (
	"encoding/json"
	"errors"
)

// Place is a single result item from the places API. The payload is kept
// verbatim; use Summary to read the common fields.
type Place json.RawMessage

// MarshalJSON returns the raw payload.
func (p Place) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of data.
func (p *Place) UnmarshalJSON(data []byte) error {
	if p == nil {
		return errors.New("models.Place: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[0:0], data...)
	return nil
}

// PlaceLocation is a lat/lng pair as the places API spells it.
type PlaceLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceSummary holds the fields shared by nearby-search, details and
// autocomplete results. Missing fields stay zero.
type PlaceSummary struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name,omitempty"`
	Vicinity         string   `json:"vicinity,omitempty"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Description      string   `json:"description,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	Types            []string `json:"types,omitempty"`
	Geometry         *struct {
		Location PlaceLocation `json:"location"`
	} `json:"geometry,omitempty"`
}

// Summary decodes the common fields of the place.
func (p Place) Summary() (PlaceSummary, error) {
	var s PlaceSummary
	if len(p) == 0 {
		return s, errors.New("empty place payload")
	}
	if err := json.Unmarshal(p, &s); err != nil {
		return s, err
	}
	return s, nil
}

// Coordinates returns the place position when the payload carries geometry.
func (s PlaceSummary) Coordinates() (Coordinates, bool) {
	if s.Geometry == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: s.Geometry.Location.Lat, Longitude: s.Geometry.Location.Lng}, true
}
