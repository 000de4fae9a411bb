package ioctl

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"
	"unsafe"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func isStorageDevice(fileName string) bool {
	return strings.HasPrefix(strings.ToUpper(fileName), `\\.\PHYSICALDRIVE`)
}

func isDevicePath(path string) (bool, error) {
	if isStorageDevice(path) {
		return true, nil
	}
	_, err := os.Stat(path)
	return false, err
}

func QueryFileSize(fileName string) (size uint64, err error) {
	if !isStorageDevice(fileName) {
		stat, err := os.Lstat(fileName)
		if err != nil {
			return 0, err
		}
		return uint64(stat.Size()), nil
	}
	handle, err := OpenDevice(fileName)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = windows.CloseHandle(handle)
	}()

	var lenSize uint32
	var info GET_LENGTH_INFORMATION
	err = windows.DeviceIoControl(
		handle,
		IOCTL_DISK_GET_LENGTH_INFO,
		nil,
		0,
		(*byte)(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
		&lenSize,
		nil)
	if err != nil {
		return 0, err
	}
	return uint64(info.Length), nil
}

func queryGeometry(fileName string) (*DISK_GEOMETRY, error) {
	handle, err := OpenDevice(fileName)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = windows.CloseHandle(handle)
	}()
	var dgSize uint32
	var dg DISK_GEOMETRY
	err = windows.DeviceIoControl(
		handle,
		IOCTL_DISK_GET_DRIVE_GEOMETRY,
		nil,
		0,
		(*byte)(unsafe.Pointer(&dg)),
		uint32(unsafe.Sizeof(dg)),
		&dgSize,
		nil)
	if err != nil {
		return nil, err
	}
	return &dg, nil
}

func QuerySectorSize(fileName string) (uint32, error) {
	if !isStorageDevice(fileName) {
		return DefaultSectorSize, nil
	}
	dg, err := queryGeometry(fileName)
	if err != nil {
		return 0, err
	}
	return dg.BytesPerSector, nil
}

func QueryRemovable(fileName string) bool {
	if !isStorageDevice(fileName) {
		return false
	}
	dg, err := queryGeometry(fileName)
	if err != nil {
		return false
	}
	return dg.MediaType == _MEDIA_TYPE_REMOVABLE
}

// QueryReadOnly 获取硬盘是否只读.
func QueryReadOnly(hardDiskPath string) (bool, error) {
	handle, err := OpenDevice(hardDiskPath)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = windows.CloseHandle(handle)
	}()
	var dgSize uint32
	tmpLen := 16 << 10
	ioctlBuf := make([]byte, tmpLen)
	err = windows.DeviceIoControl(
		handle,
		IOCTL_DISK_GET_DISK_ATTRIBUTES,
		nil,
		0,
		&ioctlBuf[0],
		uint32(tmpLen),
		&dgSize,
		nil)
	if err != nil {
		return false, err
	}
	attr := GET_DISK_ATTRIBUTES{}
	err = struc.UnpackWithOptions(bytes.NewReader(ioctlBuf), &attr, &struc.Options{Order: binary.LittleEndian})
	if err != nil {
		return false, errors.Wrap(err, "unpack disk attributes")
	}
	return attr.Attributes&_DISK_ATTRIBUTE_READ_ONLY > 0, nil
}

func OpenDevice(path string) (windows.Handle, error) {
	sPath, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(
		sPath,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
}
