package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"traffic-agent-service/internal/models"
)

const (
	// singlePointZoom frames a lone geocoded point.
	singlePointZoom = 13
	// routeOverviewZoom frames an origin-to-destination route.
	routeOverviewZoom = 10
)

var errNotJSON = errors.New("resultado no es JSON válido")

// routeEndpoint tags a location observed during the turn as the likely
// origin or destination of a route query.
type routeEndpoint struct {
	Latitude  float64
	Longitude float64
	Name      string
	StationID *int64
}

type geocodePoint struct {
	Latitude  float64
	Longitude float64
	Location  string
}

// mapBuilder folds the tool results of one user turn into a single map
// payload. It is turn-scoped: the orchestrator constructs a fresh one
// per user message. Folding is deterministic in arrival order.
type mapBuilder struct {
	logger zerolog.Logger

	data        *models.TrafficMapData
	geocode     *geocodePoint
	origin      *routeEndpoint
	destination *routeEndpoint
	stations    map[int64]models.Station
}

func newMapBuilder(logger zerolog.Logger) *mapBuilder {
	return &mapBuilder{
		logger:   logger,
		stations: make(map[int64]models.Station),
	}
}

// MapData returns the payload accumulated so far, nil when no tool
// result produced anything renderable.
func (m *mapBuilder) MapData() *models.TrafficMapData {
	return m.data
}

// Tool result shapes. Anything that does not match is treated as absent
// for folding purposes.

type geocodeResult struct {
	Status      string             `json:"status"`
	Location    string             `json:"location"`
	Coordinates models.Coordinates `json:"coordinates"`
}

type trafficResult struct {
	Status        string               `json:"status"`
	QueryLocation models.QueryLocation `json:"query_location"`
	Stations      []models.Station     `json:"stations"`
	MapCenter     models.Coordinates   `json:"map_center"`
	MapZoom       int                  `json:"map_zoom"`
}

type routeStationDetail struct {
	ID        int64    `json:"id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Name      string   `json:"name"`
	Freeway   int      `json:"freeway"`
	Direction string   `json:"direction"`
	SPI       *float64 `json:"spi"`
}

type suggestedRoute struct {
	Stations       []int64              `json:"stations"`
	StationDetails []routeStationDetail `json:"station_details"`
}

type routesResult struct {
	Routes []suggestedRoute `json:"routes"`
}

// Fold merges one tool result into the turn's map payload. A result that
// is not valid JSON is an error the caller must surface to the model as
// the tool's own result text; a result that is valid JSON but does not
// match the expected shape for its tool is logged and ignored.
func (m *mapBuilder) Fold(toolName, raw string) error {
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("hubo un error al ejecutar la herramienta %s: %w", toolName, errNotJSON)
	}

	switch toolName {
	case "geocode_location":
		m.foldGeocode(raw)
	case "get_traffic_at_location":
		m.foldTraffic(raw)
	}

	if toolName == "suggest_routes" {
		var result routesResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil && len(result.Routes) > 0 {
			m.foldRoutes(result)
			return nil
		}
		m.logger.Debug().Str("tool", toolName).Msg("route result had no usable routes")
	}

	// A turn that only geocoded still renders a point on the map.
	if m.geocode != nil && m.data == nil {
		m.data = &models.TrafficMapData{
			QueryLocation: models.QueryLocation{
				Name:      m.geocode.Location,
				Latitude:  m.geocode.Latitude,
				Longitude: m.geocode.Longitude,
			},
			MapCenter: models.Coordinates{
				Latitude:  m.geocode.Latitude,
				Longitude: m.geocode.Longitude,
			},
			MapZoom: singlePointZoom,
		}
		m.logger.Debug().Str("location", m.geocode.Location).Msg("created single-point map from geocode")
	}

	return nil
}

func (m *mapBuilder) foldGeocode(raw string) {
	var result geocodeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil || result.Status != "success" {
		return
	}
	m.geocode = &geocodePoint{
		Latitude:  result.Coordinates.Latitude,
		Longitude: result.Coordinates.Longitude,
		Location:  result.Location,
	}
	m.logger.Debug().Str("location", result.Location).Msg("remembered geocode")
}

func (m *mapBuilder) foldTraffic(raw string) {
	var result trafficResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil || result.Status != "success" {
		return
	}

	for _, station := range result.Stations {
		if station.ID != 0 {
			m.stations[station.ID] = station
		}
	}

	// First traffic lookup of the turn becomes the origin; a later one
	// whose preceding geocode named a different place becomes the
	// destination. This carries the two-stop routing workflow without an
	// explicit origin/destination parameter from the model.
	locationName := result.QueryLocation.Name
	var nearestID *int64
	if len(result.Stations) > 0 && result.Stations[0].ID != 0 {
		id := result.Stations[0].ID
		nearestID = &id
	}

	switch {
	case m.origin == nil && m.geocode != nil:
		m.origin = &routeEndpoint{
			Latitude:  result.QueryLocation.Latitude,
			Longitude: result.QueryLocation.Longitude,
			Name:      locationName,
			StationID: nearestID,
		}
		m.logger.Debug().Str("origin", locationName).Msg("tagged route origin")
	case m.origin != nil && m.geocode != nil && m.geocode.Location != m.origin.Name && m.destination == nil:
		m.destination = &routeEndpoint{
			Latitude:  result.QueryLocation.Latitude,
			Longitude: result.QueryLocation.Longitude,
			Name:      locationName,
			StationID: nearestID,
		}
		m.logger.Debug().Str("destination", locationName).Msg("tagged route destination")
	}

	m.data = &models.TrafficMapData{
		QueryLocation: result.QueryLocation,
		Stations:      result.Stations,
		MapCenter:     result.MapCenter,
		MapZoom:       result.MapZoom,
	}
	m.logger.Debug().Str("location", locationName).Int("stations", len(result.Stations)).Msg("folded traffic map data")
}

func (m *mapBuilder) foldRoutes(result routesResult) {
	best := result.Routes[0]

	var polyline [][2]float64
	var intermediates []models.RouteStation

	if len(best.StationDetails) > 0 {
		for i, detail := range best.StationDetails {
			if detail.Latitude == 0 || detail.Longitude == 0 {
				continue
			}
			polyline = append(polyline, [2]float64{detail.Latitude, detail.Longitude})
			if i == 0 || i == len(best.StationDetails)-1 {
				continue
			}
			intermediates = append(intermediates, models.RouteStation{
				ID:        detail.ID,
				Latitude:  detail.Latitude,
				Longitude: detail.Longitude,
				Name:      detail.Name,
				Freeway:   detail.Freeway,
				Direction: detail.Direction,
			})
		}
	} else {
		// Older tool responses carry only station ids; resolve them
		// against the stations observed earlier in this turn.
		for _, id := range best.Stations {
			station, ok := m.stations[id]
			if !ok || station.Latitude == 0 || station.Longitude == 0 {
				continue
			}
			polyline = append(polyline, [2]float64{station.Latitude, station.Longitude})
			if len(polyline) == 1 || len(polyline) == len(best.Stations) {
				continue
			}
			rs := models.RouteStation{
				ID:        station.ID,
				Latitude:  station.Latitude,
				Longitude: station.Longitude,
				Name:      station.Name,
			}
			if station.Traffic != nil {
				spi := station.Traffic.SPI
				rs.SPI = &spi
			}
			intermediates = append(intermediates, rs)
		}
	}

	if m.data == nil {
		m.logger.Debug().Msg("route result arrived with no map payload to attach to")
		return
	}

	routeData := &models.RouteData{
		RoutePolyline:        polyline,
		IntermediateStations: intermediates,
	}
	if m.origin != nil {
		routeData.OriginMarker = &models.RouteMarker{
			Latitude:  m.origin.Latitude,
			Longitude: m.origin.Longitude,
			Name:      m.origin.Name,
		}
	}
	if m.destination != nil {
		routeData.DestinationMarker = &models.RouteMarker{
			Latitude:  m.destination.Latitude,
			Longitude: m.destination.Longitude,
			Name:      m.destination.Name,
		}
	}
	m.data.RouteData = routeData

	// Reframe the map to show the whole route.
	if m.origin != nil && m.destination != nil {
		m.data.MapCenter = models.Coordinates{
			Latitude:  (m.origin.Latitude + m.destination.Latitude) / 2,
			Longitude: (m.origin.Longitude + m.destination.Longitude) / 2,
		}
		m.data.MapZoom = routeOverviewZoom
	}

	m.logger.Debug().
		Int("polyline_points", len(polyline)).
		Int("intermediate_stations", len(intermediates)).
		Bool("has_origin", routeData.OriginMarker != nil).
		Bool("has_destination", routeData.DestinationMarker != nil).
		Msg("folded route data")
}
