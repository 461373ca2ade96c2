package transport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
)

// Discover best-effort scans /sys/class/tty for a USB-CDC serial device
// whose vendor:product IDs match vidPid (e.g. "1209:2101"), returning its
// /dev node path. This is the Linux-sysfs equivalent of the original CLI's
// pyserial comports() scan for that VID:PID substring.
func Discover(vidPid string) (string, error) {
	vidPid = strings.ToLower(vidPid)

	entries, err := os.ReadDir("/sys/class/tty")
	if err != nil {
		return "", xerr.Wrap(xerr.Transport, "discover: read /sys/class/tty", err)
	}

	for _, e := range entries {
		ueventPath := filepath.Join("/sys/class/tty", e.Name(), "device", "..", "uevent")
		id, ok := readProductID(ueventPath)
		if !ok {
			continue
		}
		if id == vidPid {
			return filepath.Join("/dev", e.Name()), nil
		}
	}
	return "", xerr.New(xerr.Transport, fmt.Sprintf("no serial device matching %s found", vidPid))
}

// readProductID extracts the "vvvv:pppp"-style ID from a USB device's
// uevent file, which carries a PRODUCT=vid/pid/bcd line.
func readProductID(ueventPath string) (string, bool) {
	f, err := os.Open(ueventPath)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "PRODUCT=") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "PRODUCT="), "/")
		if len(fields) < 2 {
			continue
		}
		vid, pid := padHex(fields[0]), padHex(fields[1])
		return vid + ":" + pid, true
	}
	return "", false
}

// padHex zero-pads a lowercase hex ID string (as uevent stores it, without
// leading zeros) to 4 digits so it compares equal to a "1209:2101"-style ID.
func padHex(s string) string {
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
