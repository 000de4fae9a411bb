package fossick

const (
	Unknown   Filesystem = "unknown"
	WholeDisk Filesystem = "whole-disk"
	FAT       Filesystem = "fat"
	HFSPlus   Filesystem = "hfs+"
	Ext2      Filesystem = "ext2"
	Ext3      Filesystem = "ext3"
	Ext4      Filesystem = "ext4"
	ReiserFS  Filesystem = "reiserfs"
	Btrfs     Filesystem = "btrfs"
	XFS       Filesystem = "xfs"
	ISO9660   Filesystem = "iso9660"
	NTFS      Filesystem = "ntfs"
)

// SampleSize 嗅探所需的样本长度, 覆盖ReiserFS超级块(64KiB处)并留有余量.
const SampleSize = 69632

const (
	EXTMagic             = 0xEF53
	EXTMagicOffset       = 1080 // 超级块位于1024, s_magic 偏移56.
	EXTCompatOffset      = 1116 // s_feature_compat.
	EXTIncompatOffset    = 1120 // s_feature_incompat.
	EXTUUIDOffset        = 1128 // s_uuid.
	EXTMinSample         = 1124
	EXTCompatHasJournal  = 0x0004
	EXTIncompatExtents   = 0x0040
	EXTIncompatFlexBG    = 0x0200
	ReiserFSMagicOffset  = 65588
	ReiserFSUUIDOffset   = 65620
	ReiserFSMinSample    = 65636
	BTRFSMagic           = "_BHRfS_M"
	BTRFSMagicOffset     = 65600
	BTRFSMinSample       = 65608
	XFSMagic             = "XFSB"
	XFSMinSample         = 512
	HFSPlusMagicOffset   = 1024
	HFSPlusMagic         = 0x2B48 // "H+"
	HFSXMagic            = 0x5848 // "HX"
	HFSPlusMinSample     = 1026
	BootSignature        = 0xAA55
	BootSignatureOffset  = 510
	NTFSMagic            = "NTFS    "
	NTFSMagicOffset      = 3
	NTFSSerialOffset     = 0x48
	NTFSSerialLength     = 8
	BootSectorMinSample  = 512
	ISO9660BlockSize     = 2048
	FilesystemUUIDLength = 16
)

// ReiserFSMagics 3.5, 3.6 及带日志设备的超级块魔数.
var ReiserFSMagics = []string{"ReIsErFs", "ReIsEr2Fs", "ReIsEr3Fs"}
