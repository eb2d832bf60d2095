//go:build linux

package bus

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// i2cSlaveIoctl is I2C_SLAVE from linux/i2c-dev.h: set the address a
// subsequent plain Read/Write targets.
const i2cSlaveIoctl = 0x0703

// PeriphBus adapts a real periph.io/x/conn/v3 i2c.Bus (typically backed by
// /dev/i2c-N on Linux) to the Transactor interface the controller package
// uses. Unlike SharedBus it cannot also act as a Listener: a physical
// adapter plugged into a controller never has to answer transactions
// itself, only originate them.
type PeriphBus struct {
	bus i2c.Bus
}

// OpenPeriphBus initializes the periph.io host drivers and opens busName
// (an empty string selects the system default, e.g. "/dev/i2c-1" on a
// Raspberry Pi). Callers should call host.Init() once per process; calling
// it again here is harmless, matching hostextra.Init()'s own contract.
//
// If periph's own registry cannot open busName (typically because no
// driver claimed it, e.g. a minimal or container kernel without the
// i2c-dev sysfs entries periph probes for), this falls back to opening
// busName directly as a /dev/i2c-N character device via raw ioctl, with
// no cgo and no dependency on periph's driver registration.
func OpenPeriphBus(busName string) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: periph host init: %w", err)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		dev, devErr := openLinuxI2CDev(busName)
		if devErr != nil {
			return nil, fmt.Errorf("bus: opening i2c bus %q: %w (ioctl fallback: %v)", busName, err, devErr)
		}
		return &PeriphBus{bus: dev}, nil
	}
	return &PeriphBus{bus: b}, nil
}

// linuxI2CDev is a cgo-free, periph-registry-free i2c.Bus backed directly
// by a /dev/i2c-N character device, using golang.org/x/sys/unix for the
// open/ioctl/read/write syscalls involved. It only implements the subset
// of i2c.Bus that Tx needs (no SCL speed control, no bus scanning).
type linuxI2CDev struct {
	fd int
}

func openLinuxI2CDev(path string) (*linuxI2CDev, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", path, err)
	}
	return &linuxI2CDev{fd: fd}, nil
}

// Tx implements i2c.Bus. It addresses the device, writes w if it is
// non-empty, then reads into r if it is non-empty. A set exchange passes
// only w; a get exchange passes both in one call (see PeriphBus.Transact),
// which this performs as a plain write followed by a plain read rather
// than as one combined I2C_RDWR transfer.
func (d *linuxI2CDev) Tx(addr uint16, w, r []byte) error {
	if err := unix.IoctlSetInt(d.fd, i2cSlaveIoctl, int(addr)); err != nil {
		return fmt.Errorf("bus: ioctl I2C_SLAVE %#02x: %w", addr, err)
	}
	if len(w) > 0 {
		if _, err := unix.Write(d.fd, w); err != nil {
			return fmt.Errorf("bus: write to %#02x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := unix.Read(d.fd, r); err != nil {
			return fmt.Errorf("bus: read from %#02x: %w", addr, err)
		}
	}
	return nil
}

func (d *linuxI2CDev) String() string { return "linuxI2CDev" }

// Halt implements conn.Resource. There is no in-flight operation to stop:
// every Tx call already runs to completion before returning.
func (d *linuxI2CDev) Halt() error { return nil }

// Close releases the device file descriptor.
func (d *linuxI2CDev) Close() error { return unix.Close(d.fd) }

var (
	_ i2c.Bus       = (*linuxI2CDev)(nil)
	_ i2c.BusCloser = (*linuxI2CDev)(nil)
)

// Close releases the underlying bus handle.
func (p *PeriphBus) Close() error {
	if closer, ok := p.bus.(i2c.BusCloser); ok {
		return closer.Close()
	}
	return nil
}

// Transact implements Transactor. periph's i2c.Bus.Tx is itself a single
// blocking call covering both the write and the following read, so ctx's
// deadline can only be honored at the granularity of the whole
// transaction, not byte-by-byte; a transaction already in flight when ctx
// expires still runs to completion.
func (p *PeriphBus) Transact(ctx context.Context, addr uint8, tx []byte, wantRxLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bus: %w", ErrBusTimeout)
	}

	var rx []byte
	if wantRxLen > 0 {
		rx = make([]byte, wantRxLen)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.bus.Tx(uint16(addr), tx, rx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("bus: addr %#02x: %w", addr, err)
		}
		if len(rx) == 2 && rx[0] == NackSentinel[0] && rx[1] == NackSentinel[1] {
			return nil, fmtNack(addr)
		}
		return rx, nil
	case <-ctx.Done():
		return nil, ErrBusTimeout
	}
}

var _ Transactor = (*PeriphBus)(nil)
