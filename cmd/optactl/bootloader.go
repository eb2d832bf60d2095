//go:build !linux

package main

import (
	"errors"
	"io"

	"github.com/tarm/serial"
)

// openBootloaderPort opens the UART a peripheral's bootloader listens on
// once it has accepted a reboot frame (protocol.ArgReboot, §4.8). Baud
// matches the bootloader's fixed rate; it is not negotiated over I2C.
func openBootloaderPort(path string, baud int) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{Name: path, Baud: baud})
}

// runFirmwareUpdate would drive the peripheral's bootloader protocol over
// port to flash image. Flashing a peripheral's firmware is out of scope
// (spec.md §1's Non-goals exclude the bootloader wire protocol itself);
// this only grounds the serial handle hand-off a real updater would need.
func runFirmwareUpdate(port io.ReadWriteCloser, image []byte) error {
	return errors.New("optactl: firmware update is not implemented")
}
