package fossick

import (
	"io"

	"github.com/pkg/errors"
)

// Device 嗅探过程中需要向设备询问的信息.
type Device interface {
	// BlockSize 设备报告的扇区大小.
	BlockSize() uint32
	// IsLogicalPartition 介质本身是否为分区.
	IsLogicalPartition() bool
	// RootOpens 固件文件系统驱动能否打开该卷的根目录.
	RootOpens() bool
}

// Sniff 根据样本判断文件系统类型并提取UUID.
// 各项检查按固定顺序执行, 首个命中即返回, 样本长度不足的检查直接跳过.
func Sniff(s Sample, dev Device) Detection {
	var d Detection
	if s.Len() >= EXTMinSample {
		if magic, _ := s.U16(EXTMagicOffset); magic == EXTMagic {
			d.Type = extVariant(s)
			copyUUID(&d.UUID, s, EXTUUIDOffset, FilesystemUUIDLength)
			return d
		}
	}
	if s.Len() >= ReiserFSMinSample && isReiserFS(s) {
		d.Type = ReiserFS
		copyUUID(&d.UUID, s, ReiserFSUUIDOffset, FilesystemUUIDLength)
		return d
	}
	if s.Len() >= BTRFSMinSample && s.HasAt(BTRFSMagicOffset, BTRFSMagic) {
		d.Type = Btrfs
		return d
	}
	if s.Len() >= XFSMinSample && s.HasAt(0, XFSMagic) {
		d.Type = XFS
		return d
	}
	if s.Len() >= HFSPlusMinSample {
		if magic, _ := s.U16(HFSPlusMagicOffset); magic == HFSPlusMagic || magic == HFSXMagic {
			d.Type = HFSPlus
			return d
		}
	}
	if s.Len() >= BootSectorMinSample {
		if sig, _ := s.U16(BootSignatureOffset); sig == BootSignature {
			switch {
			case s.HasAt(NTFSMagicOffset, NTFSMagic):
				d.Type = NTFS
				copyUUID(&d.UUID, s, NTFSSerialOffset, NTFSSerialLength)
			case dev != nil && dev.RootOpens():
				d.Type = FAT
			case dev == nil || !dev.IsLogicalPartition():
				d.Type = WholeDisk
			default:
				d.Type = Unknown
			}
			return d
		}
	}
	if dev != nil && dev.BlockSize() == ISO9660BlockSize {
		d.Type = ISO9660
		return d
	}
	d.Type = Unknown
	return d
}

func extVariant(s Sample) Filesystem {
	incompat, _ := s.U32(EXTIncompatOffset)
	if incompat&(EXTIncompatExtents|EXTIncompatFlexBG) != 0 {
		return Ext4
	}
	compat, _ := s.U32(EXTCompatOffset)
	if compat&EXTCompatHasJournal != 0 {
		return Ext3
	}
	return Ext2
}

func isReiserFS(s Sample) bool {
	for _, m := range ReiserFSMagics {
		if s.HasAt(ReiserFSMagicOffset, m) {
			return true
		}
	}
	return false
}

// copyUUID 样本长度不足时保持UUID为零.
func copyUUID(dst *UUID, s Sample, off, n int) {
	if b, ok := s.Bytes(off, n); ok {
		copy(dst[:], b)
	}
}

// ReadSample 读取流开头的 size 字节, 流较短时返回已读到的部分.
func ReadSample(stream io.ReaderAt, size int) (Sample, error) {
	buf := make([]byte, size)
	n, err := stream.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "read sample")
	}
	return Sample(buf[:n]), nil
}

// GetFilesystemTypeByStream 读取样本并嗅探, 用于不经固件直接检查镜像或设备文件.
func GetFilesystemTypeByStream(stream io.ReaderAt, dev Device) (Detection, error) {
	s, err := ReadSample(stream, SampleSize)
	if err != nil {
		return Detection{Type: Unknown}, err
	}
	return Sniff(s, dev), nil
}

// StaticDevice 以固定值回答 Device 询问.
type StaticDevice struct {
	SectorSize uint32
	Logical    bool
	Root       bool
}

func (d StaticDevice) BlockSize() uint32 {
	return d.SectorSize
}

func (d StaticDevice) IsLogicalPartition() bool {
	return d.Logical
}

func (d StaticDevice) RootOpens() bool {
	return d.Root
}
