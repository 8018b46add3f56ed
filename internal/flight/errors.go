package flight

import "errors"

var (
	// ErrTimeout is returned when the autopilot does not answer within the
	// configured number of attempts
	ErrTimeout = errors.New("timed out waiting for autopilot")

	// ErrCommandRejected is returned when a command is acknowledged with a
	// result other than accepted
	ErrCommandRejected = errors.New("command rejected by autopilot")

	// ErrMissionRejected is returned when the autopilot refuses a mission upload
	ErrMissionRejected = errors.New("mission rejected by autopilot")

	// ErrBusy is returned when a mission upload is attempted while another is
	// in progress
	ErrBusy = errors.New("mission upload already in progress")
)
