package mapsurface

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string         `json:"type"`
	Features []Feature      `json:"features"`
	Viewport *Viewport      `json:"viewport,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON geometry. Coordinates is [lng, lat] for points and
// a list of those for line strings.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// GeoJSON renders the snapshot as a feature collection. Circles become
// points with a radius property, the renderer draws them.
func (s Snapshot) GeoJSON() FeatureCollection {
	features := make([]Feature, 0, len(s.Markers)+len(s.Circles)+len(s.Routes))

	for _, marker := range s.Markers {
		features = append(features, Feature{
			Type: "Feature",
			ID:   marker.ID,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{marker.At.Longitude, marker.At.Latitude},
			},
			Properties: map[string]any{
				"kind":  "marker",
				"label": marker.Label,
			},
		})
	}

	for _, circle := range s.Circles {
		features = append(features, Feature{
			Type: "Feature",
			ID:   circle.ID,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{circle.At.Longitude, circle.At.Latitude},
			},
			Properties: map[string]any{
				"kind":        "circle",
				"radius":      circle.RadiusMeters,
				"color":       circle.Style.Color,
				"fillColor":   circle.Style.FillColor,
				"fillOpacity": circle.Style.FillOpacity,
			},
		})
	}

	for _, route := range s.Routes {
		line := make([][]float64, 0, len(route.Waypoints))
		for _, waypoint := range route.Waypoints {
			line = append(line, []float64{waypoint.Longitude, waypoint.Latitude})
		}

		features = append(features, Feature{
			Type: "Feature",
			ID:   route.ID,
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: line,
			},
			Properties: map[string]any{
				"kind":              "route",
				"color":             route.Style.Color,
				"weight":            route.Style.Weight,
				"suppressItinerary": route.Style.SuppressItinerary,
			},
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
		Viewport: s.Viewport,
		Meta:     map[string]any{"revision": s.Revision},
	}
}
