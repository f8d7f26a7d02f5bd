// Package format defines the enumerations shared by pdbgen packages: CodeView
// record kinds, debug subsection kinds, target machines and artifact
// compression types.
package format

type (
	CompressionType uint8
	Machine         uint16
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseCompressionType maps a lower-case codec name to its CompressionType.
func ParseCompressionType(name string) (CompressionType, bool) {
	switch name {
	case "none", "":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "s2":
		return CompressionS2, true
	case "lz4":
		return CompressionLZ4, true
	default:
		return 0, false
	}
}

// COFF machine identifiers as stored in the DBI stream header.
const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14c
	MachineARMNT   Machine = 0x1c4
	MachineAMD64   Machine = 0x8664
	MachineARM64   Machine = 0xaa64
)

func (m Machine) String() string {
	switch m {
	case MachineI386:
		return "x86"
	case MachineARMNT:
		return "ARM"
	case MachineAMD64:
		return "x64"
	case MachineARM64:
		return "ARM64"
	default:
		return "Unknown"
	}
}

// CPUType returns the CodeView CV_CPU_TYPE_e value recorded in S_COMPILE3.
func (m Machine) CPUType() uint16 {
	switch m {
	case MachineI386:
		return 0x07 // CV_CFL_80386
	case MachineARMNT:
		return 0xf4 // CV_CFL_ARMNT
	case MachineAMD64:
		return 0xd0 // CV_CFL_X64
	case MachineARM64:
		return 0xf6 // CV_CFL_ARM64
	default:
		return 0
	}
}
