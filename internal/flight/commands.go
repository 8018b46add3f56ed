package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

// sendCommand writes a COMMAND_LONG and waits for its acknowledgement,
// resending on timeout. A negative acknowledgement is final.
func (c *Controller) sendCommand(ctx context.Context, cmd *common.MessageCommandLong) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	cmd.TargetSystem = c.targetSystem
	cmd.TargetComponent = c.targetComponent

	drain(c.acks)

	for attempt := 0; attempt < Attempts; attempt++ {
		cmd.Confirmation = uint8(attempt)

		if err := c.link.WriteMessageAll(cmd); err != nil {
			return fmt.Errorf("sending %s: %w", cmd.Command, err)
		}

		c.logger.Debug("command sent",
			slog.String("command", cmd.Command.String()),
			slog.Int("attempt", attempt+1))

		err := c.awaitAck(ctx, cmd.Command)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTimeout) {
			return err
		}

		c.logger.Warn("no acknowledgement, retrying", slog.String("command", cmd.Command.String()))
	}

	return fmt.Errorf("%w: %s after %d attempts", ErrTimeout, cmd.Command, Attempts)
}

func (c *Controller) awaitAck(ctx context.Context, cmd common.MAV_CMD) error {
	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s ack: %w", cmd, ctx.Err())

		case <-timer.C:
			return ErrTimeout

		case ack := <-c.acks:
			if ack.Command != cmd {
				continue
			}

			switch ack.Result {
			case common.MAV_RESULT_ACCEPTED:
				return nil
			case common.MAV_RESULT_IN_PROGRESS:
				continue
			default:
				return fmt.Errorf("%w: %s: %s", ErrCommandRejected, cmd, ack.Result)
			}
		}
	}
}

// Arm arms the motors
func (c *Controller) Arm(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:  1,
	})
}

// Takeoff climbs to altitude meters above home at the current position
func (c *Controller) Takeoff(ctx context.Context, altitude float64) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_NAV_TAKEOFF,
		Param7:  float32(altitude),
	})
}

// StartMission starts the uploaded mission from its first item
func (c *Controller) StartMission(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_MISSION_START,
	})
}

// StopMission pauses the running mission; the aircraft holds position
func (c *Controller) StopMission(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_DO_PAUSE_CONTINUE,
		Param1:  0,
	})
}

// ResumeMission continues a paused mission
func (c *Controller) ResumeMission(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_DO_PAUSE_CONTINUE,
		Param1:  1,
	})
}

// SetHomeHere makes the current position the return-to-launch point
func (c *Controller) SetHomeHere(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_DO_SET_HOME,
		Param1:  1,
	})
}

// GoHome returns to launch
func (c *Controller) GoHome(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_NAV_RETURN_TO_LAUNCH,
	})
}

// Land lands at the current position
func (c *Controller) Land(ctx context.Context) error {
	return c.sendCommand(ctx, &common.MessageCommandLong{
		Command: common.MAV_CMD_NAV_LAND,
		Param2:  float32(common.PRECISION_LAND_MODE_DISABLED),
	})
}
