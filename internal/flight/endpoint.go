package flight

import (
	"fmt"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

const (
	EndpointUDPServer = "udpServer"
	EndpointUDPClient = "udpClient"
	EndpointTCPClient = "tcpClient"
	EndpointSerial    = "serial"

	DefaultSystemID = 255 // Ground control station
	DefaultBaudRate = 57600
)

var validEndpoints = map[string]struct{}{
	EndpointUDPServer: {},
	EndpointUDPClient: {},
	EndpointTCPClient: {},
	EndpointSerial:    {},
}

// LinkConfig describes how to reach the autopilot
type LinkConfig struct {
	Endpoint string `yaml:"endpoint"` // One of udpServer, udpClient, tcpClient or serial
	Address  string `yaml:"address"`  // host:port for network endpoints, device path for serial
	BaudRate int    `yaml:"baudRate"` // Serial only

	SystemID        uint8 `yaml:"systemID"`        // Our MAVLink system ID
	TargetSystem    uint8 `yaml:"targetSystem"`    // Autopilot system ID
	TargetComponent uint8 `yaml:"targetComponent"` // Autopilot component ID
	MAVLinkV1       bool  `yaml:"mavlinkV1"`       // Send MAVLink v1 frames
}

func (c *LinkConfig) Validate() error {
	if _, ok := validEndpoints[c.Endpoint]; !ok {
		return fmt.Errorf("flight.LinkConfig: unknown endpoint: '%s'", c.Endpoint)
	}
	if c.Address == "" {
		return fmt.Errorf("flight.LinkConfig: address is required")
	}
	if c.Endpoint == EndpointSerial && c.BaudRate < 0 {
		return fmt.Errorf("flight.LinkConfig: baud rate must not be negative")
	}
	return nil
}

func (c *LinkConfig) endpointConf() gomavlib.EndpointConf {
	switch c.Endpoint {
	case EndpointUDPClient:
		return gomavlib.EndpointUDPClient{Address: c.Address}
	case EndpointTCPClient:
		return gomavlib.EndpointTCPClient{Address: c.Address}
	case EndpointSerial:
		baud := c.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		return gomavlib.EndpointSerial{Device: c.Address, Baud: baud}
	default:
		return gomavlib.EndpointUDPServer{Address: c.Address}
	}
}

// Dial opens a MAVLink node on the configured endpoint using the common
// dialect. The caller owns the node and must close it.
func Dial(c *LinkConfig) (*gomavlib.Node, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	systemID := c.SystemID
	if systemID == 0 {
		systemID = DefaultSystemID
	}

	version := gomavlib.V2
	if c.MAVLinkV1 {
		version = gomavlib.V1
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:           []gomavlib.EndpointConf{c.endpointConf()},
		Dialect:             common.Dialect,
		OutVersion:          version,
		OutSystemID:         systemID,
		StreamRequestEnable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MAVLink node: %w", err)
	}
	return node, nil
}
