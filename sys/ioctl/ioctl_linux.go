package ioctl

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

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

func QueryFileSize(fileName string) (size uint64, err error) {
	var errno syscall.Errno
	info, err := os.Stat(fileName)
	if err != nil {
		return 0, err
	}
	fm := info.Mode()
	if fm&os.ModeDevice != 0 {
		f, err := os.Open(fileName)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		if runtime.GOARCH == "386" {
			_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), LinuxIOCTLGetBlockSize, uintptr(unsafe.Pointer(&size)))
			size <<= 9
		} else {
			_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), LinuxIOCTLGetBlockSize64, uintptr(unsafe.Pointer(&size)))
		}
		if errno != 0 {
			return 0, errno
		}
		return size, nil
	} else {
		return uint64(info.Size()), nil
	}
}

// QuerySectorSize 获取块设备的逻辑扇区大小, 普通文件返回 DefaultSectorSize.
func QuerySectorSize(fileName string) (uint32, error) {
	info, err := os.Stat(fileName)
	if err != nil {
		return 0, err
	}
	if !isDevice(info) {
		return DefaultSectorSize, nil
	}
	f, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// 返回值为32位整数, 不能直接使用64位变量接收.
	var res int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), LinuxIOCTLGetSectorSize, uintptr(unsafe.Pointer(&res)))
	if errno != 0 {
		return 0, errno
	}
	return uint32(res), nil
}

func QueryReadOnly(fileName string) (bool, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var ro int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), LinuxIOCTLGetReadOnly, uintptr(unsafe.Pointer(&ro)))
	if errno != 0 {
		return false, errno
	}
	return ro != 0, nil
}

// QueryRemovable 通过 sysfs 判断块设备是否为可移除介质, 分区继承其所属磁盘的属性.
func QueryRemovable(fileName string) bool {
	target, err := filepath.EvalSymlinks(fileName)
	if err != nil {
		target = fileName
	}
	entry := filepath.Join(SysClassBlock, filepath.Base(target))
	if !sysfsExists(entry) {
		return false
	}
	if sysfsExists(filepath.Join(entry, "partition")) {
		// 分区目录位于磁盘目录之下.
		if resolved, err := filepath.EvalSymlinks(entry); err == nil {
			entry = filepath.Dir(resolved)
		}
	}
	removable, err := readUint(filepath.Join(entry, "removable"))
	if err != nil {
		return false
	}
	return removable == 1
}

func sysfsExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func readUint(path string) (uint64, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseUint(strings.TrimSpace(string(content)), 10, 64)
	if err != nil {
		return 0, err
	}

	return value, nil
}
