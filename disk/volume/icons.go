package volume

import (
	"io"

	"github.com/kisun-bit/bootvol/disk/firmware"
)

const (
	badgeBaseName = ".VolumeBadge"
	iconBaseName  = ".VolumeIcon"
)

// IconLoader 为卷加载徽标与图标.
type IconLoader interface {
	// LoadIcon 从目录加载名为 baseName 的图标, 不存在时返回false.
	LoadIcon(dir firmware.Directory, baseName string) (*Image, bool)
	// BuiltinBadge 按磁盘类型返回内置徽标.
	BuiltinBadge(kind DiskKind) *Image
}

// FileIconLoader 依次尝试 baseName 加各扩展名的文件.
type FileIconLoader struct {
	Extensions []string
	MaxSize    int64
}

func NewFileIconLoader() *FileIconLoader {
	return &FileIconLoader{Extensions: []string{"png", "icns", "bmp"}, MaxSize: 1 << 20}
}

func (l *FileIconLoader) LoadIcon(dir firmware.Directory, baseName string) (*Image, bool) {
	if dir == nil {
		return nil, false
	}
	for _, ext := range l.Extensions {
		name := baseName + "." + ext
		if !dir.FileExists(name) {
			continue
		}
		f, err := dir.OpenFile(name)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, l.MaxSize))
		_ = f.Close()
		if err != nil || len(data) == 0 {
			continue
		}
		return &Image{Name: name, Data: data}, true
	}
	return nil, false
}

func (l *FileIconLoader) BuiltinBadge(kind DiskKind) *Image {
	return &Image{Name: "vol_" + kind.String()}
}

func (r *Registry) setVolumeBadgeIcon(v *Volume) {
	if r.cfg.HideBadges || r.icons == nil {
		return
	}
	if v.VolBadgeImage == nil && v.RootDir != nil {
		if img, ok := r.icons.LoadIcon(v.RootDir, badgeBaseName); ok {
			v.VolBadgeImage = img
		}
	}
	if v.VolBadgeImage == nil {
		v.VolBadgeImage = r.icons.BuiltinBadge(v.DiskKind)
	}
}

// SetVolumeIcons 为所有卷设置徽标, 内置磁盘上的卷还会加载自定义卷图标.
func (r *Registry) SetVolumeIcons() {
	for _, v := range r.volumes {
		r.setVolumeBadgeIcon(v)
		if v.DiskKind == DiskKindInternal && v.VolIconImage == nil && r.icons != nil && v.RootDir != nil {
			if img, ok := r.icons.LoadIcon(v.RootDir, iconBaseName); ok {
				v.VolIconImage = img
			}
		}
	}
}
