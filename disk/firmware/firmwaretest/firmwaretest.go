// Package firmwaretest 提供内存中的固件实现, 供各包单元测试使用.
package firmwaretest

import (
	"bytes"
	"io"
	"strings"

	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/pkg/errors"
)

// Disk 内存块设备. Offset 为该设备在 Data 中的起始字节.
type Disk struct {
	Info   firmware.Media
	Data   []byte
	Offset uint64
	Reads  int
	// FailAt 非空时, 读取这些LBA返回设备错误.
	FailAt map[uint64]bool
}

// NewDisk 创建整盘设备.
func NewDisk(data []byte, blockSize uint32) *Disk {
	return &Disk{
		Info: firmware.Media{
			MediaID:      1,
			MediaPresent: true,
			BlockSize:    blockSize,
			LastBlock:    uint64(len(data))/uint64(blockSize) - 1,
		},
		Data: data,
	}
}

// Partition 创建共享同一数据的分区设备, start/sectors 以块为单位.
func (d *Disk) Partition(start, sectors uint64) *Disk {
	return &Disk{
		Info: firmware.Media{
			MediaID:          1,
			MediaPresent:     true,
			LogicalPartition: true,
			BlockSize:        d.Info.BlockSize,
			LastBlock:        sectors - 1,
		},
		Data:   d.Data,
		Offset: d.Offset + start*uint64(d.Info.BlockSize),
	}
}

func (d *Disk) Media() firmware.Media {
	return d.Info
}

func (d *Disk) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	d.Reads++
	if mediaID != d.Info.MediaID {
		return firmware.ErrMediaChanged
	}
	if len(buf)%int(d.Info.BlockSize) != 0 {
		return firmware.ErrBadBufferSize
	}
	if d.FailAt[lba] {
		return firmware.ErrDeviceError
	}
	blocks := uint64(len(buf)) / uint64(d.Info.BlockSize)
	if lba+blocks > d.Info.LastBlock+1 {
		return errors.Wrapf(firmware.ErrDeviceError, "read beyond end: lba %d", lba)
	}
	off := d.Offset + lba*uint64(d.Info.BlockSize)
	n := copy(buf, d.Data[off:])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// Dir 内存根目录.
type Dir struct {
	Label  string
	Size   uint64
	Files  map[string][]byte
	Closed int
	NoInfo bool
	// CloseErr 非空时由 Close 返回.
	CloseErr error
}

func (d *Dir) Info() (*firmware.FileSystemInfo, error) {
	if d.NoInfo {
		return nil, firmware.ErrUnsupported
	}
	return &firmware.FileSystemInfo{VolumeSize: d.Size, VolumeLabel: d.Label, BlockSize: 512}, nil
}

func (d *Dir) lookup(name string) ([]byte, bool) {
	for k, v := range d.Files {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func (d *Dir) FileExists(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

func (d *Dir) OpenFile(name string) (io.ReadCloser, error) {
	b, ok := d.lookup(name)
	if !ok {
		return nil, firmware.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (d *Dir) Close() error {
	d.Closed++
	return d.CloseErr
}

// Device 一个固件句柄上挂载的能力.
type Device struct {
	Handle firmware.Handle
	Path   devicepath.Path
	Blocks firmware.BlockIO
	Root   *Dir
}

// Firmware 内存固件.
type Firmware struct {
	Devices   []*Device
	Self      firmware.Handle
	LocateErr error
	next      firmware.Handle
}

func New() *Firmware {
	return &Firmware{}
}

// Add 注册设备并返回分配的句柄.
func (f *Firmware) Add(path devicepath.Path, bio firmware.BlockIO, root *Dir) *Device {
	f.next++
	d := &Device{Handle: f.next, Path: path, Blocks: bio, Root: root}
	f.Devices = append(f.Devices, d)
	return d
}

func (f *Firmware) device(h firmware.Handle) (*Device, error) {
	for _, d := range f.Devices {
		if d.Handle == h {
			return d, nil
		}
	}
	return nil, errors.Wrapf(firmware.ErrNotFound, "handle %d", h)
}

func (f *Firmware) LocateBlockIOHandles() ([]firmware.Handle, error) {
	if f.LocateErr != nil {
		return nil, f.LocateErr
	}
	var hs []firmware.Handle
	for _, d := range f.Devices {
		if d.Blocks != nil {
			hs = append(hs, d.Handle)
		}
	}
	if len(hs) == 0 {
		return nil, firmware.ErrNotFound
	}
	return hs, nil
}

func (f *Firmware) BlockIO(h firmware.Handle) (firmware.BlockIO, error) {
	d, err := f.device(h)
	if err != nil {
		return nil, err
	}
	if d.Blocks == nil {
		return nil, firmware.ErrUnsupported
	}
	return d.Blocks, nil
}

func (f *Firmware) DevicePath(h firmware.Handle) ([]byte, error) {
	d, err := f.device(h)
	if err != nil {
		return nil, err
	}
	if d.Path == nil {
		return nil, firmware.ErrUnsupported
	}
	return d.Path.Bytes(), nil
}

func (f *Firmware) LocateDevicePath(raw []byte) (firmware.Handle, error) {
	p, err := devicepath.Parse(raw)
	if err != nil {
		return firmware.NilHandle, err
	}
	var best *Device
	for _, d := range f.Devices {
		if d.Blocks == nil || d.Path == nil || !p.HasPrefix(d.Path) {
			continue
		}
		if best == nil || len(d.Path) > len(best.Path) {
			best = d
		}
	}
	if best == nil {
		return firmware.NilHandle, firmware.ErrNotFound
	}
	return best.Handle, nil
}

func (f *Firmware) OpenRoot(h firmware.Handle) (firmware.Directory, error) {
	d, err := f.device(h)
	if err != nil {
		return nil, err
	}
	if d.Root == nil {
		return nil, firmware.ErrUnsupported
	}
	return d.Root, nil
}

func (f *Firmware) SelfDeviceHandle() firmware.Handle {
	return f.Self
}
