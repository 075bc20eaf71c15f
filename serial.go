package fjage

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// serialBaudRates is the closed set of baud rates spec.md §6 allows, mapped
// to the termios speed constants the reference implementation switches on.
var serialBaudRates = map[int]uint32{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// openSerialFile opens dev read/write, non-blocking, with no controlling
// TTY, and configures it raw 8N1 at baud — spec.md §6's serial transport
// paragraph. settings is accepted for API parity with the reference
// fjage_rs232_open but only "N81" (8 data bits, no parity, 1 stop bit) is
// supported.
func openSerialFile(dev string, baud int, settings string) (*os.File, error) {
	if settings != "N81" {
		return nil, fmt.Errorf("fjage: unsupported serial settings %q (only \"N81\")", settings)
	}
	speed, ok := serialBaudRates[baud]
	if !ok {
		return nil, fmt.Errorf("fjage: unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(dev, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("fjage: open %s: %w", dev, err)
	}

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fjage: get termios on %s: %w", dev, err)
	}
	makeRaw(t)
	t.Cflag = (t.Cflag &^ unix.CSIZE) | unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cflag = (t.Cflag &^ unix.CBAUD) | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 1

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fjage: set termios on %s: %w", dev, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fjage: flush %s: %w", dev, err)
	}

	return os.NewFile(uintptr(fd), dev), nil
}

// makeRaw mirrors glibc's cfmakeraw: disable input translation/processing,
// output post-processing, canonical/echo/signal-generating line discipline.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

// OpenSerial opens a serial gateway to dev at baud with 8N1 framing. Unlike
// OpenTCP, it does not emit an initial wantsMessagesFor — spec.md §9 flags
// this TCP/serial asymmetry as present in the reference and leaves it
// unresolved, so this port preserves it rather than guessing the intended
// behavior.
func OpenSerial(dev string, baud int, settings string, opts ...GatewayOption) (*Gateway, error) {
	o := applyOptions(opts)
	f, err := openSerialFile(dev, baud, settings)
	if err != nil {
		return nil, err
	}
	gw := newGateway(f, o)
	gw.session.logf("fjage: opened serial gateway %s@%d as %s", dev, baud, gw.self)
	return gw, nil
}

// RS232Wakeup opens dev at baud/settings, writes a single wakeup byte 'A',
// and closes it again — spec.md §6's fjage_rs232_wakeup helper, used to
// rouse a sleeping peer before a real OpenSerial.
func RS232Wakeup(dev string, baud int, settings string) error {
	f, err := openSerialFile(dev, baud, settings)
	if err != nil {
		return err
	}
	defer f.Close()
	f.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := f.Write([]byte{'A'}); err != nil {
		return fmt.Errorf("fjage: rs232 wakeup write: %w", err)
	}
	return nil
}
