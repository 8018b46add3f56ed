package flight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
)

// Plan is a mission translated into MAVLink items
type Plan struct {
	Items []*common.MessageMissionItemInt

	FirstWaypoint uint16 // Sequence number of the first survey waypoint
	LastWaypoint  uint16 // Sequence number of the last survey waypoint
	Laps          int    // Times the survey waypoints are flown, counting the repeats
}

// BuildPlan translates a mission into MAVLink mission items. The optional
// home item occupies sequence 0.
func BuildPlan(m *mission.OrbitMission, homeItem bool) (*Plan, error) {
	if m == nil || m.Len() == 0 {
		return nil, mission.ErrEmptyMission
	}

	p := Plan{Laps: m.RepeatTimes + 1}
	add := func(item *common.MessageMissionItemInt) uint16 {
		item.Seq = uint16(len(p.Items))
		item.Autocontinue = 1
		p.Items = append(p.Items, item)
		return item.Seq
	}

	first := m.Waypoints[0]

	if homeItem {
		add(navItem(common.MAV_CMD_NAV_WAYPOINT, common.MAV_FRAME_GLOBAL, first.Location, 0))
	}

	add(&common.MessageMissionItemInt{
		Frame:   common.MAV_FRAME_MISSION,
		Command: common.MAV_CMD_DO_CHANGE_SPEED,
		Param1:  1, // Ground speed
		Param2:  float32(m.AutoFlightSpeed),
		Param3:  -1, // Throttle unchanged
	})

	if m.HeadingMode == mission.HeadingTowardPointOfInterest {
		add(navItem(common.MAV_CMD_DO_SET_ROI_LOCATION, common.MAV_FRAME_GLOBAL_RELATIVE_ALT, m.PointOfInterest, 0))
	}

	for i, wp := range m.Waypoints {
		item := navItem(common.MAV_CMD_NAV_WAYPOINT, common.MAV_FRAME_GLOBAL_RELATIVE_ALT, wp.Location, wp.Altitude)
		if m.PathMode == mission.PathCurved {
			item.Param3 = float32(wp.CornerRadius) // Pass radius
		} else {
			item.Param2 = float32(wp.CornerRadius) // Acceptance radius
		}
		item.Param4 = float32(math.NaN()) // Keep yaw behaviour

		seq := add(item)
		if i == 0 {
			p.FirstWaypoint = seq
		}
		p.LastWaypoint = seq
	}

	if m.RepeatTimes > 0 {
		add(&common.MessageMissionItemInt{
			Frame:   common.MAV_FRAME_MISSION,
			Command: common.MAV_CMD_DO_JUMP,
			Param1:  float32(p.FirstWaypoint),
			Param2:  float32(m.RepeatTimes),
		})
	}

	switch m.FinishedAction {
	case mission.FinishedGoHome:
		add(&common.MessageMissionItemInt{
			Frame:   common.MAV_FRAME_MISSION,
			Command: common.MAV_CMD_NAV_RETURN_TO_LAUNCH,
		})
	case mission.FinishedAutoLand:
		last := m.Waypoints[m.Len()-1]
		add(navItem(common.MAV_CMD_NAV_LAND, common.MAV_FRAME_GLOBAL_RELATIVE_ALT, last.Location, 0))
	case mission.FinishedGoFirstWaypoint:
		add(navItem(common.MAV_CMD_NAV_WAYPOINT, common.MAV_FRAME_GLOBAL_RELATIVE_ALT, first.Location, first.Altitude))
	}

	p.Items[0].Current = 1

	return &p, nil
}

func navItem(cmd common.MAV_CMD, frame common.MAV_FRAME, p geo.Point, alt float64) *common.MessageMissionItemInt {
	return &common.MessageMissionItemInt{
		Frame:   frame,
		Command: cmd,
		X:       int32(math.Round(p.Latitude * degE7)),
		Y:       int32(math.Round(p.Longitude * degE7)),
		Z:       float32(alt),
	}
}

// UploadMission locks the mission and transfers it to the autopilot using
// the MAVLink mission protocol: MISSION_COUNT, then one MISSION_ITEM_INT per
// autopilot request, finished by MISSION_ACK.
func (c *Controller) UploadMission(ctx context.Context, m *mission.OrbitMission) (*Plan, error) {
	if !c.uploadMu.TryLock() {
		return nil, ErrBusy
	}
	defer c.uploadMu.Unlock()

	plan, err := BuildPlan(m, c.homeItem)
	if err != nil {
		return nil, err
	}
	m.Lock()

	for _, item := range plan.Items {
		item.TargetSystem = c.targetSystem
		item.TargetComponent = c.targetComponent
		item.MissionType = common.MAV_MISSION_TYPE_MISSION
	}

	drain(c.missionRequests)
	drain(c.missionAcks)

	logger := c.logger.With(slog.String("mission", m.ID.String()))
	logger.Info("uploading mission", slog.Int("items", len(plan.Items)))

	var last message.Message = &common.MessageMissionCount{
		TargetSystem:    c.targetSystem,
		TargetComponent: c.targetComponent,
		Count:           uint16(len(plan.Items)),
		MissionType:     common.MAV_MISSION_TYPE_MISSION,
	}
	if err := c.link.WriteMessageAll(last); err != nil {
		return nil, fmt.Errorf("sending mission count: %w", err)
	}

	timer := time.NewTimer(c.itemTimeout)
	defer timer.Stop()

	retries := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("uploading mission: %w", ctx.Err())

		case seq := <-c.missionRequests:
			if int(seq) >= len(plan.Items) {
				return nil, fmt.Errorf("%w: requested item %d of %d", ErrMissionRejected, seq, len(plan.Items))
			}

			last = plan.Items[seq]
			if err := c.link.WriteMessageAll(last); err != nil {
				return nil, fmt.Errorf("sending mission item %d: %w", seq, err)
			}
			logger.Debug("mission item sent", slog.Int("seq", int(seq)))

			retries = 0
			resetTimer(timer, c.itemTimeout)

		case result := <-c.missionAcks:
			if result != common.MAV_MISSION_ACCEPTED {
				return nil, fmt.Errorf("%w: %s", ErrMissionRejected, result)
			}

			logger.Info("mission uploaded")
			return plan, nil

		case <-timer.C:
			retries++
			if retries >= Attempts {
				return nil, fmt.Errorf("%w: mission upload stalled", ErrTimeout)
			}

			logger.Warn("mission upload stalled, resending", slog.Int("attempt", retries+1))
			if err := c.link.WriteMessageAll(last); err != nil {
				return nil, fmt.Errorf("resending mission message: %w", err)
			}
			timer.Reset(c.itemTimeout)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
