package transport

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// Request numbers lifted from github.com/daedaluz/goserial's ioctl_linux.go,
// trimmed to what opening a raw 8N1 port at an arbitrary baud and polling
// its input queue require.
var (
	tcgets2 = ioctl.IOR('T', 0x2A, unsafe.Sizeof(termios2{}))
	tcsets2 = ioctl.IOW('T', 0x2B, unsafe.Sizeof(termios2{}))

	tiocinq = uintptr(0x541B)
)
