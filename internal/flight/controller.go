package flight

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

const (
	// Attempts is the number of times a command or mission message is sent
	// before giving up
	Attempts = 5

	// AckTimeout is how long to wait for each command acknowledgement
	AckTimeout = 5 * time.Second

	// ItemTimeout is how long to wait for the autopilot to request the next
	// mission item
	ItemTimeout = 2 * time.Second

	// Position is reported in degrees * 1e7, altitude in millimeters
	degE7 = 1e7
	mm    = 1000.0

	eventBuffer = 16
)

// Link is a MAVLink message transport. *gomavlib.Node satisfies it.
type Link interface {
	Events() chan gomavlib.Event
	WriteMessageAll(message.Message) error
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "flight"))
	}
}

// WithTarget sets the system and component IDs of the autopilot
func WithTarget(system, component uint8) func(*Controller) {
	return func(c *Controller) {
		c.targetSystem = system
		c.targetComponent = component
	}
}

// WithTimeouts overrides the acknowledgement and mission item timeouts
func WithTimeouts(ack, item time.Duration) func(*Controller) {
	return func(c *Controller) {
		c.ackTimeout = ack
		c.itemTimeout = item
	}
}

// WithHomeItem controls whether a placeholder item is uploaded at sequence 0.
// ArduPilot reserves item 0 for the home position and overwrites it.
func WithHomeItem(enabled bool) func(*Controller) {
	return func(c *Controller) {
		c.homeItem = enabled
	}
}

// Controller talks to a MAVLink autopilot: it tracks telemetry, uploads
// missions and sends commands.
type Controller struct {
	link Link

	targetSystem    uint8
	targetComponent uint8
	ackTimeout      time.Duration
	itemTimeout     time.Duration
	homeItem        bool

	telemetry telemetry.Holder
	fix       chan struct{}
	fixOnce   sync.Once

	cmdMu sync.Mutex
	acks  chan *common.MessageCommandAck

	uploadMu        sync.Mutex
	missionRequests chan uint16
	missionAcks     chan common.MAV_MISSION_RESULT

	progress chan uint16

	now    func() time.Time
	logger *slog.Logger
}

// NewController creates a new Controller with a discard logger. Run must be
// called for the controller to see any autopilot messages.
func NewController(link Link, options ...func(*Controller)) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Controller{
		link:            link,
		targetSystem:    1,
		targetComponent: 1,
		ackTimeout:      AckTimeout,
		itemTimeout:     ItemTimeout,
		homeItem:        true,
		fix:             make(chan struct{}),
		acks:            make(chan *common.MessageCommandAck, eventBuffer),
		missionRequests: make(chan uint16, eventBuffer),
		missionAcks:     make(chan common.MAV_MISSION_RESULT, eventBuffer),
		progress:        make(chan uint16, eventBuffer),
		now:             time.Now,
		logger:          logger,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Run consumes link events until ctx is done
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("listening for autopilot messages...")

	events := c.link.Events()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("autopilot listener stopped")
			return nil

		case evt, ok := <-events:
			if !ok {
				return fmt.Errorf("MAVLink link closed")
			}

			switch e := evt.(type) {
			case *gomavlib.EventFrame:
				c.handleMessage(e.Frame.GetMessage())
			case *gomavlib.EventChannelOpen:
				c.logger.Info("MAVLink channel open", slog.Any("channel", e.Channel))
			case *gomavlib.EventChannelClose:
				c.logger.Warn("MAVLink channel closed", slog.Any("channel", e.Channel))
			}
		}
	}
}

func (c *Controller) handleMessage(msg message.Message) {
	now := c.now()

	switch m := msg.(type) {
	case *common.MessageGlobalPositionInt:
		c.telemetry.Update(now, func(t *telemetry.Telemetry) {
			t.Latitude = telemetry.Ptr(float64(m.Lat) / degE7)
			t.Longitude = telemetry.Ptr(float64(m.Lon) / degE7)
			t.Altitude = telemetry.Ptr(float64(m.Alt) / mm)
			t.RelativeAltitude = telemetry.Ptr(float64(m.RelativeAlt) / mm)
		})
		c.fixOnce.Do(func() {
			close(c.fix)
			c.logger.Info("position fix acquired")
		})

	case *common.MessageAttitude:
		c.telemetry.Update(now, func(t *telemetry.Telemetry) {
			t.Roll = telemetry.Ptr(degrees(m.Roll))
			t.Pitch = telemetry.Ptr(degrees(m.Pitch))
			t.Yaw = telemetry.Ptr(degrees(m.Yaw))
		})

	case *common.MessageVfrHud:
		c.telemetry.Update(now, func(t *telemetry.Telemetry) {
			t.GroundSpeed = telemetry.Ptr(float64(m.Groundspeed))
			t.GroundCourse = telemetry.Ptr(float64(m.Heading))
		})

	case *common.MessageRadioStatus:
		c.telemetry.Update(now, func(t *telemetry.Telemetry) {
			t.RadioRSSI = telemetry.Ptr(int64(m.Rssi))
		})

	case *common.MessageCommandAck:
		c.offerLog(offer(c.acks, m), "command ack")

	case *common.MessageMissionRequestInt:
		c.offerLog(offer(c.missionRequests, m.Seq), "mission request")

	case *common.MessageMissionRequest:
		c.offerLog(offer(c.missionRequests, m.Seq), "mission request")

	case *common.MessageMissionAck:
		c.offerLog(offer(c.missionAcks, m.Type), "mission ack")

	case *common.MessageMissionItemReached:
		c.telemetry.Update(now, func(t *telemetry.Telemetry) {
			t.MissionSeq = telemetry.Ptr(int64(m.Seq))
		})
		c.offerLog(offer(c.progress, m.Seq), "mission progress")
		c.logger.Info("mission item reached", slog.Int("seq", int(m.Seq)))

	case *common.MessageStatustext:
		c.logger.Info("autopilot >> " + m.Text)
	}
}

// offer sends v without blocking the event loop; nobody waiting means the
// value is stale anyway
func offer[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

func (c *Controller) offerLog(ok bool, what string) {
	if !ok {
		c.logger.Debug("dropped " + what)
	}
}

// Get implements telemetry.Provider
func (c *Controller) Get() *telemetry.Telemetry {
	return c.telemetry.Get()
}

// Location blocks until the first position fix or ctx is done
func (c *Controller) Location(ctx context.Context) (geo.Point, error) {
	t, err := c.waitFix(ctx)
	if err != nil {
		return geo.Point{}, err
	}

	p, _ := t.Location()
	return p, nil
}

// Altitude returns the altitude above home in meters, blocking until the
// first position fix or ctx is done
func (c *Controller) Altitude(ctx context.Context) (float64, error) {
	t, err := c.waitFix(ctx)
	if err != nil {
		return 0, err
	}
	return *t.RelativeAltitude, nil
}

func (c *Controller) waitFix(ctx context.Context) (*telemetry.Telemetry, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for position fix: %w", ctx.Err())
	case <-c.fix:
		return c.telemetry.Get(), nil
	}
}

// MissionProgress returns reached mission item sequence numbers
func (c *Controller) MissionProgress() <-chan uint16 {
	return c.progress
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func degrees(rad float32) float64 {
	return float64(rad) * 180 / math.Pi
}
