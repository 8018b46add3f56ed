package instrument

import (
	"fmt"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/config"
)

const (
	// MarkerQuery reads the amplitude at the active marker of a spectrum analyzer
	MarkerQuery = "CALC:MARK:Y?"

	DefaultTimeout   = 5 * time.Second
	DefaultBaudRate  = 9600
	DefaultUSBDevice = "/dev/usbtmc0"
)

// Config describes how to reach the instrument
type Config struct {
	Resource  string              `yaml:"resource" json:"resource"`   // VISA resource string, e.g. TCPIP0::10.0.0.5::5555::SOCKET
	Query     string              `yaml:"query" json:"query"`         // SCPI query issued per reading (default: CALC:MARK:Y?)
	Timeout   config.TimeDuration `yaml:"timeout" json:"timeout"`     // Per query timeout (default: 5s)
	BaudRate  int                 `yaml:"baudRate" json:"baudRate"`   // ASRL resources only (default: 9600)
	USBDevice string              `yaml:"usbDevice" json:"usbDevice"` // usbtmc device file for USB resources (default: the usbtmc device matching the resource, else /dev/usbtmc0)
}

func (c *Config) Validate() error {
	if c.Resource == "" {
		return NewConfigError("instrument.Config: resource is required")
	}
	if _, err := ParseResource(c.Resource); err != nil {
		return NewConfigError(fmt.Sprintf("instrument.Config: %s", err))
	}
	if err := c.Timeout.Validate(); err != nil {
		return NewConfigError(fmt.Sprintf("instrument.Config: invalid timeout: %s", err))
	}
	if c.BaudRate < 0 {
		return NewConfigError(fmt.Sprintf("instrument.Config: baud rate must not be negative: %d", c.BaudRate))
	}
	return nil
}

func (c *Config) query() string {
	if c.Query == "" {
		return MarkerQuery
	}
	return c.Query
}

func (c *Config) timeout() time.Duration {
	return c.Timeout.Or(DefaultTimeout)
}
