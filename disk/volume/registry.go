package volume

import (
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/kisun-bit/bootvol/util/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PartitionTables 按分区GUID提供GPT分区信息, 由 table.PartitionCache 实现.
type PartitionTables interface {
	AddPartitionTable(bio firmware.BlockIO) error
	FindPartWithGUID(guid efi.GUID) (*table.GPTEntry, bool)
	ForgetPartitionTables()
}

// Registry 持有一次扫描得到的卷集合.
// 非并发安全, Rescan 执行期间不得读取集合.
type Registry struct {
	fw     firmware.Firmware
	tables PartitionTables
	cfg    Config
	logger *zap.SugaredLogger
	icons  IconLoader

	volumes        []*Volume
	self           *Volume
	discoveredRoot *Volume
}

// NewRegistry tables 可为nil, 此时不解析GPT分区名. logger 为nil时使用默认日志.
func NewRegistry(fw firmware.Firmware, tables PartitionTables, cfg Config, l *zap.SugaredLogger) *Registry {
	if l == nil {
		l = logger.Default()
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = fossick.SampleSize
	}
	return &Registry{
		fw:     fw,
		tables: tables,
		cfg:    cfg,
		logger: l,
		icons:  NewFileIconLoader(),
	}
}

// SetIconLoader 替换图标加载器, nil 表示不加载任何徽标和图标.
func (r *Registry) SetIconLoader(l IconLoader) {
	r.icons = l
}

// Rescan 丢弃之前的集合并重新发现所有卷.
// 仅当列举块设备句柄失败(且不是没有设备)时返回错误.
func (r *Registry) Rescan() error {
	r.closeRoots()
	r.volumes = nil
	r.self = nil
	r.discoveredRoot = nil
	if r.tables != nil {
		r.tables.ForgetPartitionTables()
	}

	handles, err := r.fw.LocateBlockIOHandles()
	if errors.Is(err, firmware.ErrNotFound) {
		r.logger.Debug("No block io handles found")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "list block io handles")
	}

	// 按发现顺序记录文件系统UUID, 先出现者有效.
	seen := orderedmap.NewOrderedMap[fossick.UUID, int]()
	number := 0
	self := r.fw.SelfDeviceHandle()
	for _, h := range handles {
		r.addPartitionTable(h)
		v := r.scanVolume(h)
		if !v.VolUUID.IsZero() {
			if first, dup := seen.Get(v.VolUUID); dup {
				r.logger.Debugf("Volume %q duplicates filesystem %s of volume %d", v.VolName, v.VolUUID, first)
				v.IsReadable = false
			} else {
				seen.Set(v.VolUUID, len(r.volumes))
			}
		}
		if v.IsReadable {
			v.VolNumber = number
			number++
		} else {
			v.VolNumber = Unnumbered
		}
		r.volumes = append(r.volumes, v)
		if h == self {
			r.self = v
		}
	}
	if r.self == nil {
		r.logger.Warn("Self volume not found")
	}

	// 扩展分区扫描会向集合追加卷, 追加的卷同样参与本轮处理.
	for i := 0; i < len(r.volumes); i++ {
		v := r.volumes[i]
		if v.IsWholeDisk() && v.MBRPartitionTable != nil {
			for _, p := range v.MBRPartitionTable.ExtendedEntries() {
				r.scanExtendedPartition(v, p)
			}
		}
		r.reconcile(v)
	}
	r.logger.Debugf("Scanned %d volume(s), %d numbered", len(r.volumes), number)
	return nil
}

func (r *Registry) addPartitionTable(h firmware.Handle) {
	if r.tables == nil {
		return
	}
	bio, err := r.fw.BlockIO(h)
	if err != nil {
		return
	}
	if err = r.tables.AddPartitionTable(bio); err != nil && !errors.Is(err, table.ErrNoGPT) {
		r.logger.Debugf("Add partition table of handle %d: %v", h, err)
	}
}

func (r *Registry) closeRoots() {
	for _, v := range r.volumes {
		if v.RootDir != nil {
			if err := v.RootDir.Close(); err != nil {
				r.logger.Debugf("Close root of %q: %v", v.VolName, err)
			}
			v.RootDir = nil
		}
	}
}

// Teardown 关闭所有根目录并丢弃固件引用, 卷的其余信息保留供 Reinit 使用.
func (r *Registry) Teardown() {
	r.closeRoots()
	for _, v := range r.volumes {
		v.DeviceHandle = firmware.NilHandle
		v.BlockIO = nil
		v.WholeDiskBlockIO = nil
	}
}

// Reinit 按保存的设备路径重新获取句柄, 根目录与整盘块设备.
func (r *Registry) Reinit() {
	for _, v := range r.volumes {
		if len(v.DevicePath) > 0 {
			h, err := r.fw.LocateDevicePath(v.DevicePath.Bytes())
			if err != nil {
				r.logger.Warnf("Locate device path %s: %v", v.DevicePath, err)
			} else {
				v.DeviceHandle = h
				if bio, err := r.fw.BlockIO(h); err == nil {
					v.BlockIO = bio
				}
				if dir, err := r.fw.OpenRoot(h); err == nil {
					v.RootDir = dir
				}
			}
		}
		if len(v.WholeDiskDevicePath) > 0 {
			h, err := r.fw.LocateDevicePath(v.WholeDiskDevicePath.Bytes())
			if err != nil {
				r.logger.Warnf("Locate whole disk device path %s: %v", v.WholeDiskDevicePath, err)
				continue
			}
			bio, err := r.fw.BlockIO(h)
			if err != nil {
				v.WholeDiskBlockIO = nil
				r.logger.Warnf("Get whole disk block io: %v", err)
				continue
			}
			v.WholeDiskBlockIO = bio
			// 合成的逻辑分区直接读取整盘设备.
			if v.IsSynthesized() {
				v.BlockIO = bio
			}
		}
	}
}

// Volumes 按发现顺序返回所有卷.
func (r *Registry) Volumes() []*Volume {
	return r.volumes
}

// SelfVolume 当前运行映像所在的卷.
func (r *Registry) SelfVolume() *Volume {
	return r.self
}

// DiscoveredRoot 可自动挂载的Linux根分区所在的卷.
func (r *Registry) DiscoveredRoot() *Volume {
	return r.discoveredRoot
}

func (r *Registry) ByNumber(n int) (*Volume, bool) {
	if n < 0 {
		return nil, false
	}
	for _, v := range r.volumes {
		if v.VolNumber == n {
			return v, true
		}
	}
	return nil, false
}

// ByName 按卷名查找, 不区分大小写.
func (r *Registry) ByName(name string) (*Volume, bool) {
	for _, v := range r.volumes {
		if strings.EqualFold(v.VolName, name) {
			return v, true
		}
	}
	return nil, false
}

// FindVolumeAndFilename 将加载路径拆分为卷和卷内文件路径.
// 没有卷的设备路径与之相同时, 返回的卷为nil.
func (r *Registry) FindVolumeAndFilename(loadPath []byte) (*Volume, string, error) {
	p, err := devicepath.Parse(loadPath)
	if err != nil {
		return nil, "", errors.Wrap(err, "parse load path")
	}
	device, file := p.SplitFilePath()
	for _, v := range r.volumes {
		if len(v.DevicePath) > 0 && v.DevicePath.Equal(device) {
			return v, file, nil
		}
	}
	return nil, file, nil
}
