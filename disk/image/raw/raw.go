// Package raw 以镜像文件或块设备模拟固件的块设备服务, 供离线扫描使用.
package raw

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/kisun-bit/bootvol/sys/ioctl"
	"github.com/kisun-bit/bootvol/util/logger"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// MBR磁盘签名位于引导扇区偏移440处.
const mbrDiskSignatureOffset = 440

// Options 打开镜像的选项.
type Options struct {
	// Removable 中列出的镜像以USB设备路径暴露, 即外置磁盘.
	Removable []string
	// SelfImage 当前映像所在的镜像, 其首个FAT分区(没有时为整盘)作为自身设备.
	SelfImage string
	Logger    *zap.SugaredLogger
}

// Firmware 基于镜像文件实现 firmware.Firmware.
// 每个镜像暴露一个整盘句柄, 以及每个MBR主分区或GPT分区各一个句柄.
type Firmware struct {
	files   []*os.File
	devices []*blockDevice
	self    firmware.Handle
	logger  *zap.SugaredLogger
}

// Open 依次打开镜像, 任一镜像失败时关闭已打开的镜像并返回错误.
func Open(paths []string, opts Options) (*Firmware, error) {
	fw := &Firmware{logger: opts.Logger}
	if fw.logger == nil {
		fw.logger = logger.Default()
	}
	for i, p := range paths {
		removable := funk.ContainsString(opts.Removable, p)
		if err := fw.addImage(i, p, removable); err != nil {
			_ = fw.Close()
			return nil, err
		}
		if opts.SelfImage != "" && filepath.Clean(opts.SelfImage) == filepath.Clean(p) {
			fw.self = fw.pickSelf(p)
		}
	}
	if opts.SelfImage != "" && fw.self == firmware.NilHandle {
		fw.logger.Warnf("Self image %s is not among the opened images", opts.SelfImage)
	}
	return fw, nil
}

func diskPath(index int, removable bool) devicepath.Path {
	if removable {
		return devicepath.Path{
			devicepath.NewPCIRootNode(0),
			devicepath.NewPCINode(0x14, 0),
			devicepath.NewUSBNode(uint8(index), 0),
		}
	}
	return devicepath.Path{
		devicepath.NewPCIRootNode(0),
		devicepath.NewPCINode(0x1f, 2),
		devicepath.NewSATANode(uint16(index), 0xffff, 0),
	}
}

func (fw *Firmware) addImage(index int, path string, removable bool) error {
	info, err := ioctl.QueryDeviceInfo(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open image %s", path)
	}
	fw.files = append(fw.files, f)
	bs := uint64(info.SectorSize)
	if info.Size < bs {
		return errors.Errorf("image %s is smaller than one sector", path)
	}
	removable = removable || info.Removable

	whole := fw.add(&blockDevice{
		path: diskPath(index, removable),
		media: firmware.Media{
			MediaID:        1,
			RemovableMedia: removable,
			MediaPresent:   true,
			ReadOnly:       info.ReadOnly,
			BlockSize:      info.SectorSize,
			LastBlock:      info.Size/bs - 1,
		},
		r:    f,
		name: path,
	})
	fw.logger.Debugf("Image %s: %d bytes, %d-byte sectors, removable=%v", path, info.Size, bs, removable)

	sector0 := make([]byte, bs)
	if err := whole.ReadBlocks(whole.media.MediaID, 0, sector0); err != nil {
		return errors.Wrapf(err, "read first sector of %s", path)
	}
	switch table.GetDiskType(sector0) {
	case table.DTypeGPT:
		fw.addGPTPartitions(whole)
	case table.DTypeMBR:
		fw.addMBRPartitions(whole, sector0)
	default:
		fw.logger.Debugf("Image %s has no partition table", path)
	}
	return nil
}

func (fw *Firmware) add(d *blockDevice) *blockDevice {
	d.handle = firmware.Handle(len(fw.devices) + 1)
	fw.devices = append(fw.devices, d)
	return d
}

func (fw *Firmware) addPartition(whole *blockDevice, start, size uint64, node devicepath.Node) {
	if size == 0 || start+size > whole.media.LastBlock+1 {
		fw.logger.Warnf("Skip partition at lba %d (%d sectors) beyond end of %s", start, size, whole.name)
		return
	}
	media := whole.media
	media.LogicalPartition = true
	media.LastBlock = size - 1
	path := append(append(devicepath.Path{}, whole.path...), node)
	fw.add(&blockDevice{
		path:   path,
		media:  media,
		r:      whole.r,
		offset: whole.offset + int64(start*uint64(whole.media.BlockSize)),
		name:   whole.name,
	})
}

func (fw *Firmware) addGPTPartitions(whole *blockDevice) {
	r := firmware.NewBlockReader(whole)
	entries, err := table.ReadGPT(r, r.Size(), int64(whole.media.BlockSize))
	if err != nil {
		fw.logger.Warnf("Read gpt of %s: %v", whole.name, err)
		return
	}
	for _, e := range entries {
		size := e.EndLBA - e.StartLBA + 1
		fw.addPartition(whole, e.StartLBA, size, devicepath.NewHardDriveNode(devicepath.HardDrive{
			PartitionNumber: uint32(e.Index + 1),
			PartitionStart:  e.StartLBA,
			PartitionSize:   size,
			Signature:       [16]byte(e.PartGUID),
			MBRType:         devicepath.PartitionFormatGPT,
			SignatureType:   devicepath.SignatureTypeGUID,
		}))
	}
}

// addMBRPartitions 只暴露主分区, 扩展分区内的逻辑分区留给卷扫描沿EBR链发现.
func (fw *Firmware) addMBRPartitions(whole *blockDevice, sector0 []byte) {
	tbl, ok := table.ParseMBRTable(sector0)
	if !ok {
		return
	}
	var sig [16]byte
	binary.LittleEndian.PutUint32(sig[:], diskSignature(sector0))
	fw.logger.Debugf("Image %s: mbr disk signature %08x", whole.name, diskSignature(sector0))
	for i, p := range tbl {
		if p.IsEmpty() || p.IsExtend() {
			continue
		}
		fw.addPartition(whole, uint64(p.StartLBA), uint64(p.Size), devicepath.NewHardDriveNode(devicepath.HardDrive{
			PartitionNumber: uint32(i + 1),
			PartitionStart:  uint64(p.StartLBA),
			PartitionSize:   uint64(p.Size),
			Signature:       sig,
			MBRType:         devicepath.PartitionFormatMBR,
			SignatureType:   devicepath.SignatureTypeMBR,
		}))
	}
}

// pickSelf 选择镜像中首个可打开根目录的分区, 否则为整盘句柄.
func (fw *Firmware) pickSelf(path string) firmware.Handle {
	var whole firmware.Handle
	for _, d := range fw.devices {
		if d.name != path {
			continue
		}
		if d.isWholeDisk() {
			whole = d.handle
			continue
		}
		if v, err := openFAT(d.section(), d.media.ReadOnly); err == nil {
			_ = v.Close()
			return d.handle
		}
	}
	return whole
}

func (fw *Firmware) device(h firmware.Handle) (*blockDevice, error) {
	if h == firmware.NilHandle || int(h) > len(fw.devices) {
		return nil, errors.Wrapf(firmware.ErrNotFound, "handle %d", h)
	}
	return fw.devices[h-1], nil
}

func (fw *Firmware) LocateBlockIOHandles() ([]firmware.Handle, error) {
	if len(fw.devices) == 0 {
		return nil, firmware.ErrNotFound
	}
	hs := make([]firmware.Handle, 0, len(fw.devices))
	for _, d := range fw.devices {
		hs = append(hs, d.handle)
	}
	return hs, nil
}

func (fw *Firmware) BlockIO(h firmware.Handle) (firmware.BlockIO, error) {
	d, err := fw.device(h)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (fw *Firmware) DevicePath(h firmware.Handle) ([]byte, error) {
	d, err := fw.device(h)
	if err != nil {
		return nil, err
	}
	return d.path.Bytes(), nil
}

func (fw *Firmware) LocateDevicePath(raw []byte) (firmware.Handle, error) {
	p, err := devicepath.Parse(raw)
	if err != nil {
		return firmware.NilHandle, errors.Wrap(err, "parse device path")
	}
	var best *blockDevice
	for _, d := range fw.devices {
		if !p.HasPrefix(d.path) {
			continue
		}
		if best == nil || len(d.path) > len(best.path) {
			best = d
		}
	}
	if best == nil {
		return firmware.NilHandle, errors.Wrapf(firmware.ErrNotFound, "locate %s", p)
	}
	return best.handle, nil
}

// OpenRoot 仅支持FAT12/16/32卷.
func (fw *Firmware) OpenRoot(h firmware.Handle) (firmware.Directory, error) {
	d, err := fw.device(h)
	if err != nil {
		return nil, err
	}
	v, err := openFAT(d.section(), d.media.ReadOnly)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (fw *Firmware) SelfDeviceHandle() firmware.Handle {
	return fw.self
}

// Close 关闭所有镜像文件, 之后不得再使用任何句柄.
func (fw *Firmware) Close() error {
	var first error
	for _, f := range fw.files {
		if err := f.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close %s", f.Name())
		}
	}
	fw.files = nil
	return first
}

// diskSignature 返回整盘MBR中的32位磁盘签名.
func diskSignature(sector0 []byte) uint32 {
	return binary.LittleEndian.Uint32(sector0[mbrDiskSignatureOffset:])
}
