// Command optactl discovers and inspects Opta Blueprint expansion
// modules on an I2C bus.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/controller"
	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/expansion/ledscreen"
)

// openController opens either a real I2C bus (busName is a device path
// or periph bus name) or, when busName is "sim", an in-memory simulated
// daisy chain. The returned closer releases whichever backed it.
func openController(busName string) (*controller.Controller, io.Closer, error) {
	if busName == "sim" {
		rig := newSimRig()
		c := controller.New(rig.sb, nil)
		return c, rig, nil
	}
	pb, err := bus.OpenPeriphBus(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("open bus %s: %w", busName, err)
	}
	return controller.New(pb, nil), pb, nil
}

func printSlots(c *controller.Controller) {
	any := false
	for _, s := range c.Registry().Slots() {
		if !s.Populated() {
			continue
		}
		any = true
		fmt.Printf("slot %d: addr=%#02x type=%s product=%q version=%d.%d.%d\n",
			s.Index, s.Address, s.Type, s.Product, s.Version.Major, s.Version.Minor, s.Version.Release)
	}
	if !any {
		fmt.Println("no expansions discovered")
	}
}

func runDiscover(busName string) error {
	c, closer, err := openController(busName)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := c.RunDiscovery(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	printSlots(c)
	return nil
}

// slotDigitalInputs reads whichever of the two input-bearing families a
// slot holds, so -watch works against both a digital and an analog
// expansion without the caller caring which.
func slotDigitalInputs(c *controller.Controller, s *controller.Slot) (uint32, bool) {
	switch s.Type {
	case expansion.TypeAnalog:
		v, err := c.Analog(s.Index).DigitalInputs()
		return uint32(v), err == nil
	case expansion.TypeDigitalGeneric, expansion.TypeDigitalMechanical, expansion.TypeDigitalSolidState:
		v, err := c.Digital(s.Index).Inputs()
		return uint32(v), err == nil
	default:
		return 0, false
	}
}

func runStatus(busName string, period time.Duration, watch bool) error {
	c, closer, err := openController(busName)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := c.RunDiscovery(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	printSlots(c)
	if !watch {
		return nil
	}

	screen := ledscreen.New(8)
	defer screen.Halt()

	any := false
	for _, s := range c.Registry().Slots() {
		if s.Populated() {
			any = true
		}
	}
	if !any {
		return nil
	}

	for range time.Tick(period) {
		for _, s := range c.Registry().Slots() {
			if !s.Populated() {
				continue
			}
			mask, ok := slotDigitalInputs(c, s)
			if !ok {
				continue
			}
			_, _ = screen.WriteMask(mask)
		}
	}
	return nil
}

func runFlash(port string, baud int, imagePath string) error {
	image, err := ioutil.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read firmware image: %w", err)
	}
	p, err := openBootloaderPort(port, baud)
	if err != nil {
		return fmt.Errorf("open bootloader port: %w", err)
	}
	defer p.Close()
	return runFirmwareUpdate(p, image)
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	busName := flag.String("bus", "sim", `I2C bus name ("sim" for the built-in simulated chain, or a device path such as /dev/i2c-1)`)
	period := flag.Duration("period", 500*time.Millisecond, "status refresh period")
	watch := flag.Bool("watch", false, "with status, keep polling and render a live view via ledscreen")
	port := flag.String("port", "/dev/ttyACM0", "serial port a rebooted peripheral's bootloader listens on")
	baud := flag.Int("baud", 115200, "bootloader baud rate")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	switch flag.Arg(0) {
	case "discover", "":
		return runDiscover(*busName)
	case "status":
		return runStatus(*busName, *period, *watch)
	case "flash":
		if flag.NArg() < 2 {
			return errors.New("flash requires a firmware image path")
		}
		return runFlash(*port, *baud, flag.Arg(1))
	default:
		return errors.New("unknown command, want discover, status or flash")
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "optactl: %s.\n", err)
		os.Exit(1)
	}
}
