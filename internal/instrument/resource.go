package instrument

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	KindTCP    Kind = "tcp"
	KindSerial Kind = "serial"
	KindUSB    Kind = "usb"
)

// Kind is the transport a resource is reached over
type Kind string

// Resource is a parsed VISA resource string
type Resource struct {
	Kind    Kind
	Address string // host:port for TCP, device path for serial

	VendorID  uint16 // USB only
	ProductID uint16 // USB only
	Serial    string // USB only
}

// ParseResource parses the subset of VISA resource strings this package can
// open without a VISA library:
//
//	TCPIP[board]::host::port::SOCKET
//	ASRL<port>::INSTR or ASRL<device path>::INSTR
//	USB[board]::vendor::product::serial[::interface]::INSTR
func ParseResource(s string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	head := strings.ToUpper(parts[0])
	suffix := strings.ToUpper(parts[len(parts)-1])

	switch {
	case strings.HasPrefix(head, "TCPIP"):
		if len(parts) != 4 || suffix != "SOCKET" {
			return Resource{}, fmt.Errorf("unsupported TCPIP resource, only raw sockets are supported: %q", s)
		}
		if _, err := strconv.ParseUint(parts[2], 10, 16); err != nil {
			return Resource{}, fmt.Errorf("invalid port in resource %q", s)
		}
		return Resource{Kind: KindTCP, Address: net.JoinHostPort(parts[1], parts[2])}, nil

	case strings.HasPrefix(head, "ASRL"):
		if len(parts) != 2 || suffix != "INSTR" {
			return Resource{}, fmt.Errorf("invalid ASRL resource: %q", s)
		}
		dev := parts[0][len("ASRL"):]
		if dev == "" {
			return Resource{}, fmt.Errorf("missing serial port in resource %q", s)
		}
		if n, err := strconv.Atoi(dev); err == nil {
			if n < 1 {
				return Resource{}, fmt.Errorf("invalid serial port number in resource %q", s)
			}
			dev = fmt.Sprintf("/dev/ttyS%d", n-1) // ASRL1 is the first port
		}
		return Resource{Kind: KindSerial, Address: dev}, nil

	case strings.HasPrefix(head, "USB"):
		if (len(parts) != 5 && len(parts) != 6) || suffix != "INSTR" {
			return Resource{}, fmt.Errorf("invalid USB resource: %q", s)
		}
		vid, err := strconv.ParseUint(parts[1], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("invalid vendor id in resource %q", s)
		}
		pid, err := strconv.ParseUint(parts[2], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("invalid product id in resource %q", s)
		}
		return Resource{
			Kind:      KindUSB,
			VendorID:  uint16(vid),
			ProductID: uint16(pid),
			Serial:    parts[3],
		}, nil
	}

	return Resource{}, fmt.Errorf("unsupported resource: %q", s)
}

func (r Resource) String() string {
	if r.Kind == KindUSB {
		return fmt.Sprintf("usb %04x:%04x %s", r.VendorID, r.ProductID, r.Serial)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.Address)
}
