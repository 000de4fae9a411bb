//go:build !linux && !windows

package ioctl

import (
	"os"

	"github.com/pkg/errors"
)

var errUnsupportedPlatform = errors.New("block device queries are not supported on this platform")

func isDevice(st os.FileInfo) bool {
	return st.Mode()&os.ModeDevice != 0
}

func isDevicePath(path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return isDevice(st), nil
}

func QueryFileSize(fileName string) (uint64, error) {
	st, err := os.Stat(fileName)
	if err != nil {
		return 0, err
	}
	if isDevice(st) {
		return 0, errUnsupportedPlatform
	}
	return uint64(st.Size()), nil
}

func QuerySectorSize(fileName string) (uint32, error) {
	return DefaultSectorSize, nil
}

func QueryRemovable(_ string) bool {
	return false
}

func QueryReadOnly(_ string) (bool, error) {
	return false, errUnsupportedPlatform
}
