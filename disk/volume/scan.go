package volume

import (
	efi "github.com/canonical/go-efilib"
	"github.com/kisun-bit/bootvol/disk/bootcode"
	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"go.uber.org/zap"
)

const opticalBlockSize = 2048

// NTFS卷在传统模式下需具备以下任一引导文件才视为可引导.
var windowsBIOSBootFiles = []string{"NTLDR", "bootmgr"}

// sniffDevice 为嗅探器回答设备相关的询问.
type sniffDevice struct {
	fw     firmware.Firmware
	v      *Volume
	logger *zap.SugaredLogger
}

func (d sniffDevice) BlockSize() uint32 {
	return d.v.BlockIO.Media().BlockSize
}

func (d sniffDevice) IsLogicalPartition() bool {
	return d.v.BlockIO.Media().LogicalPartition
}

func (d sniffDevice) RootOpens() bool {
	if d.v.DeviceHandle == firmware.NilHandle {
		return false
	}
	dir, err := d.fw.OpenRoot(d.v.DeviceHandle)
	if err != nil {
		return false
	}
	if err = dir.Close(); err != nil {
		d.logger.Debugf("Close sniffed root of handle %d: %v", d.v.DeviceHandle, err)
	}
	return true
}

// scanVolume 第一遍扫描中构造单个句柄对应的卷.
func (r *Registry) scanVolume(h firmware.Handle) *Volume {
	v := &Volume{DeviceHandle: h, VolNumber: Unnumbered, FSType: fossick.Unknown}

	if raw, err := r.fw.DevicePath(h); err == nil {
		if v.DevicePath, err = devicepath.Parse(raw); err != nil {
			r.logger.Warnf("Handle %d has malformed device path: %v", h, err)
		} else {
			r.logger.Debugf("* %s", v.DevicePath)
		}
	}

	v.DiskKind = DiskKindInternal
	if bio, err := r.fw.BlockIO(h); err != nil {
		r.logger.Warnf("Can't get block io for handle %d: %v", h, err)
	} else {
		v.BlockIO = bio
		if bio.Media().BlockSize == opticalBlockSize {
			v.DiskKind = DiskKindOptical
		}
	}

	bootable := r.scanBootcode(v)
	r.walkDevicePath(v, &bootable)
	if !bootable {
		if v.HasBootCode {
			r.logger.Debugf("Volume considered non-bootable, but boot code is present")
		}
		v.HasBootCode = false
	}
	if !v.IsWholeDisk() {
		v.MBRPartitionTable = nil
	}

	if dir, err := r.fw.OpenRoot(h); err == nil {
		v.RootDir = dir
	}
	v.VolName = GetVolumeName(v)

	if v.RootDir == nil {
		v.IsReadable = false
		return v
	}
	v.IsReadable = true
	if r.cfg.LegacyType == LegacyMac && v.FSType == fossick.NTFS && v.HasBootCode {
		v.HasBootCode = hasAnyFile(v.RootDir, windowsBIOSBootFiles)
	}
	return v
}

func hasAnyFile(dir firmware.Directory, names []string) bool {
	for _, name := range names {
		if dir.FileExists(name) {
			return true
		}
	}
	return false
}

// scanBootcode 读取样本, 识别文件系统和传统引导代码, 返回样本是否满足引导签名.
func (r *Registry) scanBootcode(v *Volume) bool {
	v.HasBootCode = false
	v.OSIconName = ""
	v.OSName = ""
	if v.BlockIO == nil {
		return false
	}
	media := v.BlockIO.Media()
	size := r.cfg.SampleSize
	if media.BlockSize == 0 || int(media.BlockSize) > size {
		return false
	}
	// 样本按块读取, 长度向下取整到扇区大小的整数倍.
	size -= size % int(media.BlockSize)
	buf, err := firmware.ReadSectors(v.BlockIO, v.BlockIOOffset, size)
	if err != nil {
		r.logger.Debugf("Read sample at lba %d failed: %v", v.BlockIOOffset, err)
		return false
	}
	sample := fossick.Sample(buf)
	d := fossick.Sniff(sample, sniffDevice{fw: r.fw, v: v, logger: r.logger})
	v.FSType = d.Type
	v.VolUUID = d.UUID

	if r.cfg.LegacyType != LegacyMac {
		return false
	}
	res := bootcode.Classify(sample)
	v.HasBootCode = res.HasBootCode
	v.OSIconName = res.OSIconName
	v.OSName = res.OSName
	v.MBRPartitionTable = res.MBRTable
	r.logger.Debugf("Result of bootcode detection: bootable=%v os=%q icon=%q", res.HasBootCode, res.OSName, res.OSIconName)
	return res.Bootable
}

// walkDevicePath 自左向右遍历设备路径, 确定磁盘类型和整盘设备.
func (r *Registry) walkDevicePath(v *Volume, bootable *bool) {
	for i, n := range v.DevicePath {
		if n.IsMedia() {
			r.setPartGUIDAndName(v, n)
		}
		if n.IsMessaging() && isExternalBus(n.SubType) {
			v.DiskKind = DiskKindExternal
		}
		if n.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaCDROMSubType) {
			v.DiskKind = DiskKindOptical
			*bootable = true
		}
		if n.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaVendorSubType) {
			// 该句柄的块设备只是整盘的别名.
			v.IsAppleLegacy = true
			*bootable = false
		}
		if n.IsMessaging() {
			r.resolveWholeDisk(v, v.DevicePath.Truncate(i+1))
		}
	}
}

func isExternalBus(st efi.DevicePathNodeSubType) bool {
	switch st {
	case efi.DevicePathNodeMsgUSBSubType, efi.DevicePathNodeMsgUSBClassSubType,
		devicepath.Msg1394SubType, devicepath.MsgFibreChannelSubType:
		return true
	}
	return false
}

func (r *Registry) resolveWholeDisk(v *Volume, disk devicepath.Path) {
	h, err := r.fw.LocateDevicePath(disk.Bytes())
	if err != nil {
		return
	}
	if raw, err := r.fw.DevicePath(h); err == nil {
		if p, err := devicepath.Parse(raw); err == nil {
			v.WholeDiskDevicePath = p
		}
	}
	bio, err := r.fw.BlockIO(h)
	if err != nil {
		v.WholeDiskBlockIO = nil
		return
	}
	v.WholeDiskBlockIO = bio
	if bio.Media().BlockSize == opticalBlockSize {
		v.DiskKind = DiskKindOptical
	}
}

// setPartGUIDAndName 从GPT分区节点获取分区GUID, 名称与属性.
func (r *Registry) setPartGUIDAndName(v *Volume, n devicepath.Node) {
	if !n.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaHardDriveSubType) {
		return
	}
	hd, err := n.HardDrive()
	if err != nil {
		r.logger.Debugf("Skip hard drive node: %v", err)
		return
	}
	guid, ok := hd.GUID()
	if !ok {
		return
	}
	v.PartGUID = guid
	if r.tables == nil {
		return
	}
	e, ok := r.tables.FindPartWithGUID(guid)
	if !ok {
		return
	}
	v.PartName = e.Name
	v.PartTypeGUID = e.TypeGUID
	if e.IsDiscoverableRoot() {
		r.discoveredRoot = v
	}
	v.IsMarkedReadOnly = e.IsReadOnly()
}
