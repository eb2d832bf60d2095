package expansion

import "fmt"

// TypeTag discriminates the peripheral families a controller can talk to.
// It mirrors the type_tag field of a controller-side expansion slot.
type TypeTag uint32

const (
	TypeInvalid TypeTag = iota
	TypeDigitalGeneric
	TypeDigitalMechanical
	TypeDigitalSolidState
	TypeAnalog
	TypeDisplay
	// TypeCustomBase and above are reserved for factory-registered custom
	// peripherals; the concrete value is assigned at registration time (see
	// factory.go) and is opaque to the core.
	TypeCustomBase TypeTag = 1 << 16
)

func (t TypeTag) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeDigitalGeneric:
		return "digital-generic"
	case TypeDigitalMechanical:
		return "digital-mechanical"
	case TypeDigitalSolidState:
		return "digital-solid-state"
	case TypeAnalog:
		return "analog"
	case TypeDisplay:
		return "display"
	default:
		if t >= TypeCustomBase {
			return fmt.Sprintf("custom(%#x)", uint32(t))
		}
		return fmt.Sprintf("TypeTag(%#x)", uint32(t))
	}
}

// WireByte encodes t as the single type byte the get-address-and-type
// answer carries. Custom families (anything registered
// through a factory) all report wireTypeCustom; the controller resolves
// the concrete type by issuing get-product-type and matching the
// returned product string against its registered factories.
func (t TypeTag) WireByte() byte {
	switch t {
	case TypeInvalid:
		return 0
	case TypeDigitalGeneric:
		return 1
	case TypeDigitalMechanical:
		return 2
	case TypeDigitalSolidState:
		return 3
	case TypeAnalog:
		return 4
	case TypeDisplay:
		return 5
	default:
		return wireTypeCustom
	}
}

const wireTypeCustom = 0xFF

// FirmwareVersion is the three-byte major/minor/release triple every
// peripheral reports in answer to get-version.
type FirmwareVersion struct {
	Major, Minor, Release byte
}

// Identity is the immutable-at-runtime identity data a peripheral reports
// to the controller: its declared type, product string (up to 32 bytes,
// UTF-8, factory-level), and firmware version.
type Identity struct {
	Type       TypeTag
	Product    string
	Version    FirmwareVersion
}

// ProductBytes returns Product encoded as a fixed 32-byte nameplate
// payload, truncated or zero-padded as needed.
func (id Identity) ProductBytes() [32]byte {
	var out [32]byte
	copy(out[:], id.Product)
	return out
}
