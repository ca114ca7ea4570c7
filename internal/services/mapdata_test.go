package services

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	geocodeDowntown = `{"status":"success","location":"Downtown","coordinates":{"latitude":34.04,"longitude":-118.25}}`
	geocodeSM       = `{"status":"success","location":"Santa Monica","coordinates":{"latitude":34.02,"longitude":-118.49}}`

	trafficDowntown = `{"status":"success",
		"query_location":{"name":"Downtown","latitude":34.04,"longitude":-118.25},
		"stations":[
			{"id":101,"name":"I-110 N @ 4th","latitude":34.05,"longitude":-118.26,"traffic":{"spi":72.5,"congestion_level":1,"congestion_label":"Fluido"}},
			{"id":102,"name":"I-10 E @ Alameda","latitude":34.03,"longitude":-118.23,"traffic":{"spi":38.1,"congestion_level":3,"congestion_label":"Congestionado"}},
			{"id":103,"name":"US-101 S @ Main","latitude":34.06,"longitude":-118.24}
		],
		"map_center":{"latitude":34.04,"longitude":-118.25},
		"map_zoom":12}`

	trafficSM = `{"status":"success",
		"query_location":{"name":"Santa Monica","latitude":34.02,"longitude":-118.49},
		"stations":[{"id":201,"name":"I-10 W @ Lincoln","latitude":34.02,"longitude":-118.48,"traffic":{"spi":55.0}}],
		"map_center":{"latitude":34.02,"longitude":-118.49},
		"map_zoom":12}`
)

func newTestBuilder() *mapBuilder {
	return newMapBuilder(zerolog.Nop())
}

func TestFoldRejectsNonJSON(t *testing.T) {
	b := newTestBuilder()

	err := b.Fold("get_traffic_at_location", "Internal Server Error")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no es JSON válido")
	assert.Contains(t, err.Error(), "get_traffic_at_location")
	assert.Nil(t, b.MapData())
}

func TestFoldGeocodeOnlyRendersSinglePoint(t *testing.T) {
	b := newTestBuilder()

	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))

	data := b.MapData()
	require.NotNil(t, data)
	assert.Equal(t, "Downtown", data.QueryLocation.Name)
	assert.Equal(t, 34.04, data.MapCenter.Latitude)
	assert.Equal(t, -118.25, data.MapCenter.Longitude)
	assert.Equal(t, singlePointZoom, data.MapZoom)
	assert.Empty(t, data.Stations)
}

func TestFoldFailedGeocodeIgnored(t *testing.T) {
	b := newTestBuilder()

	require.NoError(t, b.Fold("geocode_location", `{"status":"error","message":"no encontrado"}`))

	assert.Nil(t, b.MapData())
}

func TestFoldTrafficReplacesGeocodeMap(t *testing.T) {
	b := newTestBuilder()

	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))
	require.NoError(t, b.Fold("get_traffic_at_location", trafficDowntown))

	data := b.MapData()
	require.NotNil(t, data)
	assert.Equal(t, "Downtown", data.QueryLocation.Name)
	assert.Len(t, data.Stations, 3)
	assert.Equal(t, 12, data.MapZoom)
	require.NotNil(t, data.Stations[0].Traffic)
	assert.Equal(t, 72.5, data.Stations[0].Traffic.SPI)
}

func TestFoldIsDeterministicAcrossReplays(t *testing.T) {
	run := func() *mapBuilder {
		b := newTestBuilder()
		require.NoError(t, b.Fold("geocode_location", geocodeDowntown))
		require.NoError(t, b.Fold("get_traffic_at_location", trafficDowntown))
		return b
	}

	assert.Equal(t, run().MapData(), run().MapData())
}

func TestFoldRouteWithStationDetails(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))
	require.NoError(t, b.Fold("get_traffic_at_location", trafficDowntown))
	require.NoError(t, b.Fold("geocode_location", geocodeSM))
	require.NoError(t, b.Fold("get_traffic_at_location", trafficSM))

	routes := `{"routes":[{
		"stations":[101,103,201],
		"station_details":[
			{"id":101,"latitude":34.05,"longitude":-118.26,"name":"I-110 N @ 4th","freeway":110,"direction":"N"},
			{"id":103,"latitude":34.06,"longitude":-118.24,"name":"US-101 S @ Main","freeway":101,"direction":"S","spi":48.2},
			{"id":999,"latitude":0,"longitude":0,"name":"sin coordenadas"},
			{"id":201,"latitude":34.02,"longitude":-118.48,"name":"I-10 W @ Lincoln","freeway":10,"direction":"W"}
		]}]}`
	require.NoError(t, b.Fold("suggest_routes", routes))

	data := b.MapData()
	require.NotNil(t, data)
	require.NotNil(t, data.RouteData)

	route := data.RouteData
	// The zero-coordinate detail is dropped from the polyline.
	assert.Len(t, route.RoutePolyline, 3)
	assert.Equal(t, [2]float64{34.05, -118.26}, route.RoutePolyline[0])

	require.NotNil(t, route.OriginMarker)
	assert.Equal(t, "Downtown", route.OriginMarker.Name)
	require.NotNil(t, route.DestinationMarker)
	assert.Equal(t, "Santa Monica", route.DestinationMarker.Name)

	assert.Equal(t, routeOverviewZoom, data.MapZoom)
	assert.InDelta(t, (34.04+34.02)/2, data.MapCenter.Latitude, 1e-9)
	assert.InDelta(t, (-118.25+-118.49)/2, data.MapCenter.Longitude, 1e-9)
}

func TestFoldRouteExcludesEndpointStations(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))
	require.NoError(t, b.Fold("get_traffic_at_location", trafficDowntown))

	routes := `{"routes":[{
		"stations":[101,102,103],
		"station_details":[
			{"id":101,"latitude":34.05,"longitude":-118.26,"name":"first"},
			{"id":102,"latitude":34.03,"longitude":-118.23,"name":"middle"},
			{"id":103,"latitude":34.06,"longitude":-118.24,"name":"last"}
		]}]}`
	require.NoError(t, b.Fold("suggest_routes", routes))

	route := b.MapData().RouteData
	require.NotNil(t, route)
	require.Len(t, route.IntermediateStations, 1)
	assert.Equal(t, int64(102), route.IntermediateStations[0].ID)
}

func TestFoldRouteResolvesIDsAgainstSeenStations(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))
	require.NoError(t, b.Fold("get_traffic_at_location", trafficDowntown))

	// No station_details: ids resolve against the stations folded above;
	// unknown ids are skipped.
	routes := `{"routes":[{"stations":[101,102,555,103]}]}`
	require.NoError(t, b.Fold("suggest_routes", routes))

	route := b.MapData().RouteData
	require.NotNil(t, route)
	assert.Len(t, route.RoutePolyline, 3)
	require.Len(t, route.IntermediateStations, 2)
	assert.Equal(t, int64(102), route.IntermediateStations[0].ID)
	require.NotNil(t, route.IntermediateStations[0].SPI)
	assert.Equal(t, 38.1, *route.IntermediateStations[0].SPI)
}

func TestFoldRouteWithoutPriorTrafficIsDropped(t *testing.T) {
	b := newTestBuilder()

	require.NoError(t, b.Fold("suggest_routes", `{"routes":[{"stations":[1,2]}]}`))

	assert.Nil(t, b.MapData())
}

func TestFoldEmptyRoutesFallsBackToGeocode(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.Fold("geocode_location", geocodeDowntown))

	require.NoError(t, b.Fold("suggest_routes", `{"routes":[]}`))

	data := b.MapData()
	require.NotNil(t, data)
	assert.Equal(t, singlePointZoom, data.MapZoom)
	assert.Nil(t, data.RouteData)
}
