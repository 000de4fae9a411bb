package firmware

import (
	"io"

	"github.com/pkg/errors"
)

// Handle 固件设备句柄. 零值表示无效句柄.
type Handle uint64

const NilHandle Handle = 0

var (
	ErrNotFound      = errors.New("not found")
	ErrUnsupported   = errors.New("unsupported")
	ErrDeviceError   = errors.New("device error")
	ErrMediaChanged  = errors.New("media changed")
	ErrBadBufferSize = errors.New("bad buffer size")
)

// Media 块设备介质信息.
type Media struct {
	MediaID          uint32
	RemovableMedia   bool
	MediaPresent     bool
	LogicalPartition bool // 介质为分区而非整盘.
	ReadOnly         bool
	BlockSize        uint32
	LastBlock        uint64 // 最后一个可寻址块(包含).
}

// Size 介质字节总数.
func (m Media) Size() uint64 {
	return (m.LastBlock + 1) * uint64(m.BlockSize)
}

// BlockIO 块设备读能力.
// 调用方通过比较接口值判断两个引用是否指向同一设备, 因此实现必须为指针类型.
// 块设备引用由固件持有, 扫描逻辑从不释放它.
type BlockIO interface {
	Media() Media
	ReadBlocks(mediaID uint32, lba uint64, buf []byte) error
}

// FileSystemInfo 根目录所在文件系统的信息.
type FileSystemInfo struct {
	ReadOnly    bool
	VolumeSize  uint64
	FreeSpace   uint64
	BlockSize   uint32
	VolumeLabel string
}

// Directory 已打开的卷根目录.
type Directory interface {
	Info() (*FileSystemInfo, error)
	FileExists(name string) bool
	OpenFile(name string) (io.ReadCloser, error)
	Close() error
}

// Firmware 卷发现逻辑依赖的固件服务.
type Firmware interface {
	// LocateBlockIOHandles 列出所有提供块设备能力的句柄, 无设备时返回 ErrNotFound.
	LocateBlockIOHandles() ([]Handle, error)
	BlockIO(h Handle) (BlockIO, error)
	// DevicePath 返回句柄的原始设备路径(以结束节点结尾).
	DevicePath(h Handle) ([]byte, error)
	// LocateDevicePath 返回设备路径最长前缀所对应且提供块设备能力的句柄.
	LocateDevicePath(path []byte) (Handle, error)
	OpenRoot(h Handle) (Directory, error)
	// SelfDeviceHandle 当前运行映像所在设备的句柄.
	SelfDeviceHandle() Handle
}

// ReadSectors 从 lba 起读取 size 字节.
func ReadSectors(bio BlockIO, lba uint64, size int) ([]byte, error) {
	if bio == nil {
		return nil, errors.Wrap(ErrUnsupported, "no block io")
	}
	buf := make([]byte, size)
	if err := bio.ReadBlocks(bio.Media().MediaID, lba, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
