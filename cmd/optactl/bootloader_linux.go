//go:build linux

package main

import (
	"errors"
	"io"

	"github.com/daedaluz/goserial"
)

// openBootloaderPort opens the UART a peripheral's bootloader listens on,
// using goserial's ioctl-based port instead of tarm/serial's cgo-free one
// (see bootloader.go). Functionally equivalent; this is the Linux half of
// the pack's two serial libraries getting a real call site.
func openBootloaderPort(path string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, serial.NewOptions())
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, err
	}
	attrs.ISpeed = uint32(baud)
	attrs.OSpeed = uint32(baud)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// runFirmwareUpdate mirrors bootloader.go's stub; see its comment.
func runFirmwareUpdate(port io.ReadWriteCloser, image []byte) error {
	return errors.New("optactl: firmware update is not implemented")
}
