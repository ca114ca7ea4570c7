package models

import "time"

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Response     string          `json:"response"`
	SessionID    string          `json:"session_id"`
	MapData      *TrafficMapData `json:"mapData,omitempty"`
	ToolProgress []ToolProgress  `json:"toolProgress,omitempty"`
}

type ClearResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	Sessions            int    `json:"sessions"`
	MCPConfigured       bool   `json:"mcp_configured"`
	AnthropicConfigured bool   `json:"anthropic_configured"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Coordinates is a bare lat/lon pair used for map centers.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// QueryLocation is the named point a turn was asking about.
type QueryLocation struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StationTraffic carries the per-station metrics reported by the tool
// server. SPI is a speed performance index; the rest are its labels.
type StationTraffic struct {
	SPI             float64 `json:"spi"`
	CongestionLevel int     `json:"congestion_level"`
	CongestionLabel string  `json:"congestion_label"`
	TrafficState    string  `json:"traffic_state"`
	ConfidenceLevel string  `json:"confidence_level"`
}

// Station is a traffic monitoring station, passed through verbatim from
// tool results.
type Station struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
	Freeway    int             `json:"freeway"`
	Direction  string          `json:"direction"`
	Lanes      int             `json:"lanes"`
	Type       string          `json:"type"`
	DistanceKM float64         `json:"distance_km"`
	Traffic    *StationTraffic `json:"traffic,omitempty"`
}

// RouteMarker marks the origin or destination of a suggested route.
type RouteMarker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// RouteStation is an interior point of a suggested route (origin and
// destination excluded).
type RouteStation struct {
	ID        int64    `json:"id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	SPI       *float64 `json:"spi,omitempty"`
	Name      string   `json:"name,omitempty"`
	Freeway   int      `json:"freeway,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

// RouteData is the routing overlay for a map: markers, the literal
// polyline geometry, and the intermediate monitoring stations.
type RouteData struct {
	OriginMarker         *RouteMarker   `json:"origin_marker,omitempty"`
	DestinationMarker    *RouteMarker   `json:"destination_marker,omitempty"`
	RoutePolyline        [][2]float64   `json:"route_polyline,omitempty"`
	IntermediateStations []RouteStation `json:"intermediate_stations"`
}

// TrafficMapData is everything the frontend needs to render the map for
// one turn. Built incrementally while tool results arrive; discarded at
// the start of the next turn.
type TrafficMapData struct {
	QueryLocation QueryLocation `json:"query_location"`
	Stations      []Station     `json:"stations,omitempty"`
	MapCenter     Coordinates   `json:"map_center"`
	MapZoom       int           `json:"map_zoom"`
	RouteData     *RouteData    `json:"route_data,omitempty"`
}

// ToolProgress is one human-readable progress line for a tool call.
type ToolProgress struct {
	ToolName  string `json:"tool_name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptMessage is the document shape mirrored to the optional
// transcript store. Status is "running" for in-flight drafts, "done"
// once finalized.
type TranscriptMessage struct {
	ID           string          `json:"id,omitempty"`
	SessionID    string          `json:"session_id"`
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Status       string          `json:"status,omitempty"`
	Source       string          `json:"source,omitempty"`
	MapData      *TrafficMapData `json:"mapData,omitempty"`
	ToolProgress []ToolProgress  `json:"toolProgress,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
}

// TranscriptPatch is a partial update applied to a draft message.
type TranscriptPatch struct {
	Content      *string         `json:"content,omitempty"`
	Status       *string         `json:"status,omitempty"`
	MapData      *TrafficMapData `json:"mapData,omitempty"`
	ToolProgress []ToolProgress  `json:"toolProgress,omitempty"`
}
