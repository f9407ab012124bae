package flight

// ValidationError is a request-shape error surfaced as HTTP 400.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin        ValidationError = "origin is required"
	ErrBadAirportCode       ValidationError = "airport codes must be 3 uppercase letters"
	ErrMissingDepartureDate ValidationError = "departure_date is required"
	ErrReturnBeforeOutbound ValidationError = "return_date must be after departure_date"
	ErrTooManyInfants       ValidationError = "infants cannot exceed adults"
)

// Validate checks the query shape and fills defaults. Destination is
// optional: an empty destination means discovery mode.
func (q *Query) Validate() error {
	if q.Origin == "" {
		return ErrMissingOrigin
	}
	if !ValidIATA(q.Origin) {
		return ErrBadAirportCode
	}
	if q.Destination != "" && !ValidIATA(q.Destination) {
		return ErrBadAirportCode
	}
	if q.DepartureDate == "" {
		return ErrMissingDepartureDate
	}
	if q.ReturnDate != nil && *q.ReturnDate != "" && *q.ReturnDate <= q.DepartureDate {
		return ErrReturnBeforeOutbound
	}
	if q.Passengers.Adults <= 0 {
		q.Passengers.Adults = 1
	}
	if q.Passengers.Infants > q.Passengers.Adults {
		return ErrTooManyInfants
	}
	if q.Currency == "" {
		q.Currency = "BRL"
	}
	return nil
}

// ValidIATA reports whether code is a 3-uppercase-letter airport code.
func ValidIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
