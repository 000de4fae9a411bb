package table

import efi "github.com/canonical/go-efilib"

const (
	GPTDefaultLBASize = 512
	GPTSignature      = "EFI PART"
)

// GPT 分区属性位.
const (
	GPTAttrRequired    uint64 = 1 << 0
	GPTAttrNoBlockIO   uint64 = 1 << 1
	GPTAttrLegacyBoot  uint64 = 1 << 2
	GPTAttrReadOnly    uint64 = 1 << 60
	GPTAttrHidden      uint64 = 1 << 62
	GPTAttrNoAutomount uint64 = 1 << 63
)

// http://en.wikipedia.org/wiki/GUID_Partition_Table#Partition_type_GUIDs
var (
	BlankEmptyPart      = efi.GUID{}
	GEFISystemPartition = efi.MakeGUID(0xc12a7328, 0xf81f, 0x11d2, 0xba4b, [6]uint8{0x00, 0xa0, 0xc9, 0x3e, 0xc9, 0x3b})
	BIOSBootPartition   = efi.MakeGUID(0x21686148, 0x6449, 0x6e6f, 0x744e, [6]uint8{0x65, 0x65, 0x64, 0x45, 0x46, 0x49})
	MicroMSR            = efi.MakeGUID(0xe3c9e316, 0x0b5c, 0x4db8, 0x817d, [6]uint8{0xf9, 0x2d, 0xf0, 0x02, 0x15, 0xae})
	BasicDataPartition  = efi.MakeGUID(0xebd0a0a2, 0xb9e5, 0x4433, 0x87c0, [6]uint8{0x68, 0xb6, 0xb7, 0x26, 0x99, 0xc7})
	LinuxFSData         = efi.MakeGUID(0x0fc63daf, 0x8483, 0x4772, 0x8e79, [6]uint8{0x3d, 0x69, 0xd8, 0x47, 0x7d, 0xe4})
	SwapPartition       = efi.MakeGUID(0x0657fd6d, 0xa4ab, 0x43c4, 0x84e5, [6]uint8{0x09, 0x33, 0xc8, 0x4b, 0x4f, 0x4f})
	LVMPartition        = efi.MakeGUID(0xe6d6d379, 0xf507, 0x44c2, 0xa23c, [6]uint8{0x23, 0x8f, 0x2a, 0x3d, 0xf9, 0x28})
	HFSPlusPartition    = efi.MakeGUID(0x48465300, 0x0000, 0x11aa, 0xaa11, [6]uint8{0x00, 0x30, 0x65, 0x43, 0xec, 0xac})
	// FreedesktopRoot x86-64 根分区, 见 Discoverable Partitions Specification.
	FreedesktopRoot = efi.MakeGUID(0x4f68bce3, 0xe8cd, 0x4db1, 0x96e7, [6]uint8{0xfb, 0xca, 0xf9, 0x84, 0xb7, 0x09})
)

var GPTPartitionTypeDesc = map[efi.GUID]string{
	BlankEmptyPart:      "Blank Or Empty",
	GEFISystemPartition: "EFI System Partition",
	BIOSBootPartition:   "BIOS Boot Partition",
	MicroMSR:            "Microsoft Reserved Partition (MSR)",
	BasicDataPartition:  "Basic Data Partition",
	LinuxFSData:         "Linux Filesystem Data",
	SwapPartition:       "Swap Partition",
	LVMPartition:        "Logical Volume Manager (LVM) Partition",
	HFSPlusPartition:    "Hierarchical File System Plus (HFS+) Partition",
	FreedesktopRoot:     "Linux x86-64 Root Partition",
}

// IgnorePartitionNames 工具默认写入的分区名, 不作为卷显示名使用.
var IgnorePartitionNames = []string{
	"Microsoft basic data",
	"Linux filesystem",
	"Apple HFS/HFS+",
}
