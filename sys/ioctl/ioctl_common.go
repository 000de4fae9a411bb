package ioctl

import (
	"os"

	"github.com/pkg/errors"
)

// QueryDeviceInfo 汇总路径对应的大小, 扇区大小, 可移除与只读属性.
// 对普通文件, 扇区大小固定为 DefaultSectorSize, 只读属性取自文件权限.
func QueryDeviceInfo(path string) (*DeviceInfo, error) {
	dev, err := isDevicePath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	info := &DeviceInfo{Path: path, SectorSize: DefaultSectorSize, IsDevice: dev}
	if info.Size, err = QueryFileSize(path); err != nil {
		return nil, errors.Wrapf(err, "query size of %s", path)
	}
	if !info.IsDevice {
		st, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", path)
		}
		info.ReadOnly = st.Mode().Perm()&0o222 == 0
		return info, nil
	}
	if info.SectorSize, err = QuerySectorSize(path); err != nil {
		return nil, errors.Wrapf(err, "query sector size of %s", path)
	}
	info.Removable = QueryRemovable(path)
	if info.ReadOnly, err = QueryReadOnly(path); err != nil {
		return nil, errors.Wrapf(err, "query read-only of %s", path)
	}
	return info, nil
}
