package instrument

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUSBDeviceNotFound is returned when usbtmc devices are attached but none
// matches the resource
var ErrUSBDeviceNotFound = errors.New("no matching usbtmc device")

var (
	sysfsRoot = "/sys"
	devRoot   = "/dev"
)

// FindUSBDevice returns the usbtmc device file of the instrument with the
// vendor id, product id and serial number of r. Attached devices are listed
// under sysfs/class/usbmisc. The returned path is in devDir. An empty path
// and a nil error mean no usbtmc device is attached at all.
func FindUSBDevice(sysfs, devDir string, r Resource) (string, error) {
	nodes, err := filepath.Glob(filepath.Join(sysfs, "class", "usbmisc", "usbtmc*"))
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}

	for _, node := range nodes {
		// device links to the USB interface, the device attributes live in its parent
		iface, err := filepath.EvalSymlinks(filepath.Join(node, "device"))
		if err != nil {
			continue
		}
		usb := filepath.Dir(iface)

		vid, err := readHexID(filepath.Join(usb, "idVendor"))
		if err != nil || vid != r.VendorID {
			continue
		}
		pid, err := readHexID(filepath.Join(usb, "idProduct"))
		if err != nil || pid != r.ProductID {
			continue
		}
		if r.Serial != "" {
			serial, err := os.ReadFile(filepath.Join(usb, "serial"))
			if err != nil || strings.TrimSpace(string(serial)) != r.Serial {
				continue
			}
		}

		return filepath.Join(devDir, filepath.Base(node)), nil
	}

	return "", fmt.Errorf("%w: %s", ErrUSBDeviceNotFound, r)
}

func readHexID(path string) (uint16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint16(id), nil
}

// usbDevice resolves the device file for a USB resource: the configured
// file, the matching usbtmc device, or DefaultUSBDevice when sysfs lists no
// usbtmc devices.
func usbDevice(c *Config, r Resource) (string, error) {
	if c.USBDevice != "" {
		return c.USBDevice, nil
	}

	dev, err := FindUSBDevice(sysfsRoot, devRoot, r)
	if err != nil {
		return "", err
	}
	if dev == "" {
		return DefaultUSBDevice, nil
	}
	return dev, nil
}
