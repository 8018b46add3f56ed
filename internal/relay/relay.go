package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// KeyMagnitude is the request and response key for an instrument reading
	KeyMagnitude = "Magnitude"

	// BadData is sent in place of a reading when the instrument could not be read
	BadData = "BAD DATA\n"

	// Path is the request endpoint
	Path = "/appservice"
)

// ErrBadData is returned when the relay answered with BadData or a value
// that is not a number
var ErrBadData = errors.New("relay returned bad data")

// ValueSet is the request and response body: a flat string to string map
type ValueSet map[string]string

// ParseMagnitude converts a relay reading to a number
func ParseMagnitude(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if v == "" || v == strings.TrimSpace(BadData) {
		return 0, ErrBadData
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadData, v)
	}
	return f, nil
}
