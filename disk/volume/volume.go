// Package volume 发现并分类固件暴露的所有块设备卷.
package volume

import (
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/pkg/errors"
)

// Unnumbered 不可读或UUID重复的卷的编号.
const Unnumbered = -1

type DiskKind int

const (
	DiskKindInternal DiskKind = iota
	DiskKindExternal
	DiskKindOptical
	DiskKindNet
)

func (k DiskKind) String() string {
	switch k {
	case DiskKindInternal:
		return "internal"
	case DiskKindExternal:
		return "external"
	case DiskKindOptical:
		return "optical"
	case DiskKindNet:
		return "net"
	}
	return "unknown"
}

// LegacyType 平台的传统BIOS兼容方式, 仅 LegacyMac 下识别引导代码.
type LegacyType int

const (
	LegacyNone LegacyType = iota
	LegacyMac
	LegacyUEFI
)

func (t LegacyType) String() string {
	switch t {
	case LegacyMac:
		return "mac"
	case LegacyUEFI:
		return "uefi"
	}
	return "none"
}

func ParseLegacyType(s string) (LegacyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mac", "":
		return LegacyMac, nil
	case "uefi":
		return LegacyUEFI, nil
	case "none":
		return LegacyNone, nil
	}
	return LegacyNone, errors.Errorf("unknown legacy type %q", s)
}

// Config 扫描行为配置.
type Config struct {
	LegacyType LegacyType
	// SampleSize 每个卷读取的样本字节数, 不足 fossick.SampleSize 时部分检查会被跳过.
	SampleSize int
	HideBadges bool
}

func DefaultConfig() Config {
	return Config{
		LegacyType: LegacyMac,
		SampleSize: fossick.SampleSize,
	}
}

// Image 图标加载器返回的图像, 扫描逻辑不解读其内容.
type Image struct {
	Name string
	Data []byte
}

// Volume 一个发现或合成的卷.
// BlockIO 与 WholeDiskBlockIO 均为固件持有的引用, 卷不负责释放.
type Volume struct {
	DeviceHandle        firmware.Handle
	DevicePath          devicepath.Path
	WholeDiskDevicePath devicepath.Path
	PartGUID            efi.GUID
	PartTypeGUID        efi.GUID
	PartName            string
	VolUUID             fossick.UUID

	DiskKind    DiskKind
	FSType      fossick.Filesystem
	HasBootCode bool
	OSIconName  string
	OSName      string

	IsMBRPartition    bool
	MBRPartitionIndex int             // 仅当 IsMBRPartition 为true时有意义.
	MBRPartitionTable *table.MBRTable // 仅整盘卷保留.
	BlockIO           firmware.BlockIO
	WholeDiskBlockIO  firmware.BlockIO
	BlockIOOffset     uint64 // 相对 BlockIO 的起始扇区.

	RootDir    firmware.Directory
	IsReadable bool
	VolNumber  int

	VolName          string
	IsMarkedReadOnly bool
	IsAppleLegacy    bool
	VolBadgeImage    *Image
	VolIconImage     *Image
}

// IsWholeDisk 卷本身即整盘设备时返回true.
func (v *Volume) IsWholeDisk() bool {
	return v.BlockIO != nil && v.BlockIO == v.WholeDiskBlockIO && v.BlockIOOffset == 0
}

// IsSynthesized 卷由EBR链合成, 没有对应的固件句柄.
func (v *Volume) IsSynthesized() bool {
	return v.DeviceHandle == firmware.NilHandle && v.IsMBRPartition && v.MBRPartitionIndex >= table.MBRLogicalPartitionBase
}
