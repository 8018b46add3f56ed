package flight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/frame"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
)

// fakeAutopilot records written messages and answers them with respond
type fakeAutopilot struct {
	events chan gomavlib.Event

	mu      sync.Mutex
	written []message.Message
	respond func(message.Message) []message.Message
}

func newFakeAutopilot(respond func(message.Message) []message.Message) *fakeAutopilot {
	return &fakeAutopilot{
		events:  make(chan gomavlib.Event, 64),
		respond: respond,
	}
}

func (f *fakeAutopilot) Events() chan gomavlib.Event {
	return f.events
}

func (f *fakeAutopilot) WriteMessageAll(m message.Message) error {
	f.mu.Lock()
	f.written = append(f.written, m)
	f.mu.Unlock()

	if f.respond != nil {
		for _, r := range f.respond(m) {
			f.emit(r)
		}
	}
	return nil
}

func (f *fakeAutopilot) emit(m message.Message) {
	f.events <- &gomavlib.EventFrame{Frame: &frame.V2Frame{Message: m}}
}

func (f *fakeAutopilot) messages() []message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]message.Message(nil), f.written...)
}

// missionResponder requests every item in order and accepts the upload
func missionResponder() func(message.Message) []message.Message {
	var count uint16
	return func(m message.Message) []message.Message {
		switch msg := m.(type) {
		case *common.MessageMissionCount:
			count = msg.Count
			return []message.Message{&common.MessageMissionRequestInt{Seq: 0}}
		case *common.MessageMissionItemInt:
			if msg.Seq+1 < count {
				return []message.Message{&common.MessageMissionRequestInt{Seq: msg.Seq + 1}}
			}
			return []message.Message{&common.MessageMissionAck{Type: common.MAV_MISSION_ACCEPTED}}
		case *common.MessageCommandLong:
			return []message.Message{&common.MessageCommandAck{Command: msg.Command, Result: common.MAV_RESULT_ACCEPTED}}
		}
		return nil
	}
}

func startController(t *testing.T, link Link, options ...func(*Controller)) *Controller {
	t.Helper()

	c := NewController(link, options...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func testMission(t *testing.T) *mission.OrbitMission {
	t.Helper()

	center := geo.Point{Latitude: 47, Longitude: -122}
	waypoints, err := mission.GenerateRingWaypoints(center, 9.144, 30, 8)
	if err != nil {
		t.Fatalf("GenerateRingWaypoints() error = %v", err)
	}
	m, err := mission.AssembleMission(waypoints, center, mission.DefaultSpeedConfig())
	if err != nil {
		t.Fatalf("AssembleMission() error = %v", err)
	}
	return m
}

func TestController_Telemetry(t *testing.T) {
	link := newFakeAutopilot(nil)
	c := startController(t, link)

	if c.Get() != nil {
		t.Fatal("telemetry available before any message")
	}

	link.emit(&common.MessageAttitude{Yaw: 1.5707964})
	link.emit(&common.MessageRadioStatus{Rssi: 180})
	link.emit(&common.MessageGlobalPositionInt{
		Lat:         470000000,
		Lon:         -1220000000,
		Alt:         120500,
		RelativeAlt: 30250,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p, err := c.Location(ctx)
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if want := (geo.Point{Latitude: 47, Longitude: -122}); p != want {
		t.Errorf("Location() = %v, want %v", p, want)
	}

	alt, err := c.Altitude(ctx)
	if err != nil {
		t.Fatalf("Altitude() error = %v", err)
	}
	if alt != 30.25 {
		t.Errorf("Altitude() = %f, want 30.25", alt)
	}

	tm := c.Get()
	if tm.Yaw == nil || *tm.Yaw < 89.99 || *tm.Yaw > 90.01 {
		t.Errorf("yaw = %v, want ~90", tm.Yaw)
	}
	if tm.RadioRSSI == nil || *tm.RadioRSSI != 180 {
		t.Errorf("rssi = %v, want 180", tm.RadioRSSI)
	}
	if tm.Altitude == nil || *tm.Altitude != 120.5 {
		t.Errorf("altitude = %v, want 120.5", tm.Altitude)
	}
}

func TestController_LocationCanceled(t *testing.T) {
	c := startController(t, newFakeAutopilot(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Location(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Location() error = %v, want %v", err, context.Canceled)
	}
	if _, err := c.Altitude(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Altitude() error = %v, want %v", err, context.Canceled)
	}
}

func TestController_MissionProgress(t *testing.T) {
	link := newFakeAutopilot(nil)
	c := startController(t, link)

	link.emit(&common.MessageMissionItemReached{Seq: 4})

	select {
	case seq := <-c.MissionProgress():
		if seq != 4 {
			t.Errorf("progress = %d, want 4", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no mission progress received")
	}

	if tm := c.Get(); tm == nil || tm.MissionSeq == nil || *tm.MissionSeq != 4 {
		t.Errorf("telemetry mission seq = %v, want 4", tm)
	}
}

func TestController_UploadMission(t *testing.T) {
	link := newFakeAutopilot(missionResponder())
	c := startController(t, link, WithTarget(1, 1))

	m := testMission(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	plan, err := c.UploadMission(ctx, m)
	if err != nil {
		t.Fatalf("UploadMission() error = %v", err)
	}

	if !m.Locked() {
		t.Error("mission not locked after upload")
	}
	if err := m.AppendCurrentPositionWaypoint(geo.Point{Latitude: 47, Longitude: -122}, 30, 1); !errors.Is(err, mission.ErrMissionLocked) {
		t.Errorf("append after upload error = %v, want %v", err, mission.ErrMissionLocked)
	}

	var items []*common.MessageMissionItemInt
	for _, msg := range link.messages() {
		if item, ok := msg.(*common.MessageMissionItemInt); ok {
			items = append(items, item)
		}
	}

	if len(items) != len(plan.Items) {
		t.Fatalf("sent %d items, want %d", len(items), len(plan.Items))
	}
	for i, item := range items {
		if int(item.Seq) != i {
			t.Errorf("item %d has seq %d", i, item.Seq)
		}
		if item.TargetSystem != 1 || item.TargetComponent != 1 {
			t.Errorf("item %d target = %d/%d", i, item.TargetSystem, item.TargetComponent)
		}
	}

	if _, ok := link.messages()[0].(*common.MessageMissionCount); !ok {
		t.Errorf("first message = %T, want mission count", link.messages()[0])
	}
}

func TestController_UploadMissionRejected(t *testing.T) {
	link := newFakeAutopilot(func(m message.Message) []message.Message {
		if _, ok := m.(*common.MessageMissionCount); ok {
			return []message.Message{&common.MessageMissionAck{Type: common.MAV_MISSION_NO_SPACE}}
		}
		return nil
	})
	c := startController(t, link)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.UploadMission(ctx, testMission(t)); !errors.Is(err, ErrMissionRejected) {
		t.Errorf("UploadMission() error = %v, want %v", err, ErrMissionRejected)
	}
}

func TestController_UploadMissionStalled(t *testing.T) {
	link := newFakeAutopilot(nil)
	c := startController(t, link, WithTimeouts(10*time.Millisecond, 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.UploadMission(ctx, testMission(t)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("UploadMission() error = %v, want %v", err, ErrTimeout)
	}
	if got := len(link.messages()); got != Attempts {
		t.Errorf("sent %d mission counts, want %d", got, Attempts)
	}
}

func TestController_Commands(t *testing.T) {
	tests := []struct {
		name    string
		respond func(message.Message) []message.Message
		wantErr error
		writes  int
	}{
		{
			name:    "accepted",
			respond: missionResponder(),
			writes:  1,
		},
		{
			name: "accepted on retry",
			respond: func(m message.Message) []message.Message {
				cmd := m.(*common.MessageCommandLong)
				if cmd.Confirmation < 2 {
					return nil
				}
				return []message.Message{&common.MessageCommandAck{Command: cmd.Command, Result: common.MAV_RESULT_ACCEPTED}}
			},
			writes: 3,
		},
		{
			name: "in progress then accepted",
			respond: func(m message.Message) []message.Message {
				cmd := m.(*common.MessageCommandLong)
				return []message.Message{
					&common.MessageCommandAck{Command: common.MAV_CMD_NAV_TAKEOFF, Result: common.MAV_RESULT_DENIED},
					&common.MessageCommandAck{Command: cmd.Command, Result: common.MAV_RESULT_IN_PROGRESS},
					&common.MessageCommandAck{Command: cmd.Command, Result: common.MAV_RESULT_ACCEPTED},
				}
			},
			writes: 1,
		},
		{
			name: "denied",
			respond: func(m message.Message) []message.Message {
				cmd := m.(*common.MessageCommandLong)
				return []message.Message{&common.MessageCommandAck{Command: cmd.Command, Result: common.MAV_RESULT_DENIED}}
			},
			wantErr: ErrCommandRejected,
			writes:  1,
		},
		{
			name:    "no answer",
			wantErr: ErrTimeout,
			writes:  Attempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeAutopilot(tt.respond)
			c := startController(t, link, WithTimeouts(20*time.Millisecond, 20*time.Millisecond))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := c.StartMission(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("StartMission() error = %v, want %v", err, tt.wantErr)
			}

			written := link.messages()
			if len(written) != tt.writes {
				t.Errorf("sent %d commands, want %d", len(written), tt.writes)
			}
			for _, m := range written {
				if cmd := m.(*common.MessageCommandLong); cmd.Command != common.MAV_CMD_MISSION_START {
					t.Errorf("command = %s, want %s", cmd.Command, common.MAV_CMD_MISSION_START)
				}
			}
		})
	}
}

func TestController_CommandEncoding(t *testing.T) {
	tests := []struct {
		name   string
		send   func(*Controller, context.Context) error
		cmd    common.MAV_CMD
		param1 float32
		param7 float32
	}{
		{"arm", (*Controller).Arm, common.MAV_CMD_COMPONENT_ARM_DISARM, 1, 0},
		{"takeoff", func(c *Controller, ctx context.Context) error { return c.Takeoff(ctx, 12.5) }, common.MAV_CMD_NAV_TAKEOFF, 0, 12.5},
		{"start", (*Controller).StartMission, common.MAV_CMD_MISSION_START, 0, 0},
		{"pause", (*Controller).StopMission, common.MAV_CMD_DO_PAUSE_CONTINUE, 0, 0},
		{"resume", (*Controller).ResumeMission, common.MAV_CMD_DO_PAUSE_CONTINUE, 1, 0},
		{"set home", (*Controller).SetHomeHere, common.MAV_CMD_DO_SET_HOME, 1, 0},
		{"go home", (*Controller).GoHome, common.MAV_CMD_NAV_RETURN_TO_LAUNCH, 0, 0},
		{"land", (*Controller).Land, common.MAV_CMD_NAV_LAND, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeAutopilot(missionResponder())
			c := startController(t, link, WithTarget(3, 4))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := tt.send(c, ctx); err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}

			written := link.messages()
			if len(written) != 1 {
				t.Fatalf("sent %d messages, want 1", len(written))
			}
			cmd := written[0].(*common.MessageCommandLong)
			if cmd.Command != tt.cmd || cmd.Param1 != tt.param1 || cmd.Param7 != tt.param7 {
				t.Errorf("command = %s param1 %v param7 %v, want %s param1 %v param7 %v",
					cmd.Command, cmd.Param1, cmd.Param7, tt.cmd, tt.param1, tt.param7)
			}
			if cmd.TargetSystem != 3 || cmd.TargetComponent != 4 {
				t.Errorf("target = %d/%d, want 3/4", cmd.TargetSystem, cmd.TargetComponent)
			}
		})
	}
}
