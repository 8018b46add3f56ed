package mission

import "errors"

var (
	// ErrInvalidParameter is returned when generation or assembly parameters
	// would produce a degenerate mission
	ErrInvalidParameter = errors.New("invalid mission parameter")

	// ErrEmptyMission is returned when a mission is assembled without waypoints
	ErrEmptyMission = errors.New("mission has no waypoints")

	// ErrAntennaNotSet is returned when mission generation is attempted before
	// the antenna location and elevation are both known
	ErrAntennaNotSet = errors.New("antenna reference is not set")

	// ErrMissionLocked is returned when a mission is modified after it was
	// handed off for upload
	ErrMissionLocked = errors.New("mission is locked for upload")
)
