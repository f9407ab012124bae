package filter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voanow/flightdeck/internal/filter"
	"github.com/voanow/flightdeck/internal/flight"
)

var pax = flight.Passengers{Adults: 1}

func at(hour, min int) time.Time {
	return time.Date(2024, 5, 1, hour, min, 0, 0, time.UTC)
}

func roundTrip(price float64, stops int, airline string, outDep, outArr, retDep, retArr time.Time) flight.Offer {
	outLegs := []flight.Leg{{
		Airline:          flight.Airline{Code: airline},
		DepartureAirport: "GRU",
		ArrivalAirport:   "LIS",
		DepartureTime:    outDep,
		ArrivalTime:      outArr,
	}}
	for i := 0; i < stops; i++ {
		outLegs = append(outLegs, flight.Leg{
			Airline:          flight.Airline{Code: airline},
			DepartureAirport: "LIS",
			ArrivalAirport:   "MAD",
			DepartureTime:    outArr,
			ArrivalTime:      outArr.Add(time.Hour),
		})
	}
	retLegs := []flight.Leg{{
		Airline:          flight.Airline{Code: airline},
		DepartureAirport: "LIS",
		ArrivalAirport:   "GRU",
		DepartureTime:    retDep,
		ArrivalTime:      retArr,
	}}
	segs := []flight.Segment{
		flight.NewSegment(outLegs, int(outArr.Sub(outDep).Minutes()), flight.Baggage{}),
		flight.NewSegment(retLegs, int(retArr.Sub(retDep).Minutes()), flight.Baggage{}),
	}
	return flight.NewOffer(segs, []flight.Term{{Gate: "g", Price: price}})
}

func sampleOffers() []flight.Offer {
	return []flight.Offer{
		roundTrip(900, 0, "G3", at(8, 0), at(18, 0), at(9, 0), at(19, 0)),
		roundTrip(700, 1, "AD", at(6, 0), at(22, 0), at(7, 0), at(23, 0)),
		roundTrip(500, 2, "LA", at(23, 0), at(11, 0), at(22, 0), at(10, 0)),
	}
}

func TestApply_AllowAllIsIdentity(t *testing.T) {
	offers := sampleOffers()
	got := filter.Apply(offers, filter.DefaultSpec(), pax)
	assert.Equal(t, offers, got)
}

func TestApply_Idempotent(t *testing.T) {
	offers := sampleOffers()
	spec := filter.DefaultSpec()
	spec.Stops = filter.StopsMaxOne

	once := filter.Apply(offers, spec, pax)
	twice := filter.Apply(once, spec, pax)
	assert.Equal(t, once, twice)
}

func TestApply_StopsModes(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.Stops = filter.StopsDirect
	direct := filter.Apply(offers, spec, pax)
	require.Len(t, direct, 1)
	assert.Equal(t, 0, direct[0].MaxStops())

	spec.Stops = filter.StopsMaxOne
	upToOne := filter.Apply(offers, spec, pax)
	require.Len(t, upToOne, 2)
	for _, o := range upToOne {
		assert.LessOrEqual(t, o.MaxStops(), 1)
	}
}

func TestApply_AirlineAllowSet(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.Airlines = filter.NewAllowSet("G3")
	got := filter.Apply(offers, spec, pax)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"G3"}, got[0].Carriers())
}

func TestApply_EmptyAllowSetExcludesEverything(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.Airlines = filter.NewAllowSet()
	assert.Empty(t, filter.Apply(offers, spec, pax), "deselecting every airline is a valid exclude-all state")

	spec = filter.DefaultSpec()
	spec.Airports = filter.NewAllowSet()
	assert.Empty(t, filter.Apply(offers, spec, pax))
}

func TestApply_AirportAllowSet(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.Airports = filter.NewAllowSet("GRU", "LIS", "MAD")
	got := filter.Apply(offers, spec, pax)
	assert.Len(t, got, len(offers), "all segments use allowed endpoints")

	spec.Airports = filter.NewAllowSet("GRU")
	assert.Empty(t, filter.Apply(offers, spec, pax))
}

func TestApply_TimeWindows(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.OutboundDeparture = filter.TimeWindow{Min: 7 * 60, Max: 12 * 60}
	got := filter.Apply(offers, spec, pax)
	require.Len(t, got, 1)
	assert.Equal(t, 900.0, got[0].Price)

	spec = filter.DefaultSpec()
	spec.ReturnArrival = filter.TimeWindow{Min: 18 * 60, Max: 1439}
	got = filter.Apply(offers, spec, pax)
	require.Len(t, got, 2)
}

func TestApply_ReturnWindowSkippedForOneWay(t *testing.T) {
	oneWay := flight.NewOffer([]flight.Segment{
		flight.NewSegment([]flight.Leg{{
			Airline:       flight.Airline{Code: "G3"},
			DepartureTime: at(8, 0),
			ArrivalTime:   at(10, 0),
		}}, 120, flight.Baggage{}),
	}, []flight.Term{{Price: 300}})

	spec := filter.DefaultSpec()
	spec.ReturnDeparture = filter.TimeWindow{Min: 600, Max: 601} // would reject anything
	got := filter.Apply([]flight.Offer{oneWay}, spec, pax)
	assert.Len(t, got, 1, "absent return segment skips return-side checks")
}

func TestApply_PriceAndDurationCeilings(t *testing.T) {
	offers := sampleOffers()

	spec := filter.DefaultSpec()
	spec.MaxPrice = 700
	got := filter.Apply(offers, spec, pax)
	require.Len(t, got, 2)
	for _, o := range got {
		assert.LessOrEqual(t, flight.PricePerPerson(o.Price, pax), 700.0)
	}

	spec = filter.DefaultSpec()
	spec.MaxDuration = 14 * 60
	got = filter.Apply(offers, spec, pax)
	require.Len(t, got, 2)
}

func TestTimeWindow_Contains(t *testing.T) {
	w := filter.TimeWindow{Min: 360, Max: 720}
	assert.True(t, w.Contains(360))
	assert.True(t, w.Contains(720))
	assert.False(t, w.Contains(359))
	assert.False(t, w.Contains(721))
}
