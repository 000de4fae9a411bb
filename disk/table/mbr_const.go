package table

const (
	MBRSignature                = 0xAA55
	MBRSignatureOffset          = 510
	MBRPartitionTableOffset     = 446
	MBRPartitionEntrySize       = 16
	MBRPartitionEntryCount      = 4
	MBRDefaultLBASize           = 1 << 9
	MBRPartitionBootable        = 0x80
	MBRPartitionNotBootable     = 0x00
	MBRLogicalPartitionBase     = 4   // 逻辑分区的槽位索引从4开始.
	MBRExtendedChainMaxHops     = 128 // EBR链最大跳数, 防止环形链表.
	MBRPartitionTableByteLength = MBRPartitionEntryCount * MBRPartitionEntrySize
)

// MBRPartitionType 表示MBR结构下的分区类型.
type MBRPartitionType = byte

const (
	Empty                MBRPartitionType = 0x00
	FAT12                MBRPartitionType = 0x01
	FAT16Range16MBTo32MB MBRPartitionType = 0x04
	ExtendCHS            MBRPartitionType = 0x05
	FAT16Range32MBTo2GB  MBRPartitionType = 0x06
	NTFS                 MBRPartitionType = 0x07
	FAT32                MBRPartitionType = 0x0B
	FAT32X               MBRPartitionType = 0x0C
	FAT16X               MBRPartitionType = 0x0E
	ExtendLBA            MBRPartitionType = 0x0F
	HiddenExtendCHS      MBRPartitionType = 0x15
	HiddenExtendLBA      MBRPartitionType = 0x1F
	WindowsRecoveryEnv   MBRPartitionType = 0x27
	LinuxSwap            MBRPartitionType = 0x82
	Linux                MBRPartitionType = 0x83
	LinuxExtend          MBRPartitionType = 0x85
	LinuxLVM             MBRPartitionType = 0x8E
	FreeBSD              MBRPartitionType = 0xA5
	OpenBSD              MBRPartitionType = 0xA6
	MacOSX               MBRPartitionType = 0xA8
	NetBSD               MBRPartitionType = 0xA9
	MacOSXBoot           MBRPartitionType = 0xAB
	MacOSXHFS            MBRPartitionType = 0xAF
	BFS                  MBRPartitionType = 0xEB
	EFIGPTProtectiveMBR  MBRPartitionType = 0xEE
	EFISystemPartition   MBRPartitionType = 0xEF
	LinuxRAID            MBRPartitionType = 0xFD
)

// MBRExtendPartTypes 会被当作EBR链起点的分区类型.
// 隐藏扩展分区(0x15/0x1F)不在其中, 固件引导菜单不展示其中的逻辑分区.
var MBRExtendPartTypes = []MBRPartitionType{ExtendCHS, ExtendLBA, LinuxExtend}

// MBRPartitionTypeDesc MBR分区类型的描述字典.
var MBRPartitionTypeDesc = map[MBRPartitionType]string{
	Empty:                "Empty",
	FAT12:                "FAT12",
	FAT16Range16MBTo32MB: "FAT16 16-32MB",
	ExtendCHS:            "Extended, CHS",
	FAT16Range32MBTo2GB:  "FAT16 32MB-2GB",
	NTFS:                 "NTFS",
	FAT32:                "FAT32",
	FAT32X:               "FAT32X",
	FAT16X:               "FAT16X",
	ExtendLBA:            "Extended, LBA",
	HiddenExtendCHS:      "Hidden Extended, CHS",
	HiddenExtendLBA:      "Hidden Extended, LBA",
	WindowsRecoveryEnv:   "Windows recovery environment",
	LinuxSwap:            "Linux Swap",
	Linux:                "Linux",
	LinuxExtend:          "Linux Extended",
	LinuxLVM:             "Linux LVM",
	FreeBSD:              "FreeBSD",
	OpenBSD:              "OpenBSD",
	MacOSX:               "Mac OS X",
	NetBSD:               "NetBSD",
	MacOSXBoot:           "Mac OS X Boot",
	MacOSXHFS:            "Mac OS X HFS",
	BFS:                  "BFS",
	EFIGPTProtectiveMBR:  "EFI GPT protective MBR",
	EFISystemPartition:   "EFI system partition",
	LinuxRAID:            "Linux RAID",
}
