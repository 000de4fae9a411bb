package ioctl

// DefaultSectorSize 普通镜像文件的扇区大小.
const DefaultSectorSize = 512

// ########################################## Linux平台相关 ##########################################

const (
	SysClassBlock = "/sys/class/block"
)

const (
	LinuxIOCTLGetBlockSize   = 0x00001260 // 获取设备扇区数(512字节).
	LinuxIOCTLGetReadOnly    = 0x0000125E // 设备是否只读.
	LinuxIOCTLGetSectorSize  = 0x00001268 // 获取逻辑扇区大小.
	LinuxIOCTLGetBlockSize64 = 0x80081272 // 获取设备大小.
)

// ########################################## Windows平台相关 ##########################################

// 关于Win32 IOCTL各个控制码使用及其意义, 请参考: https://learn.microsoft.com/en-us/windows/win32/api/winioctl
const (
	IOCTL_DISK_GET_DRIVE_GEOMETRY  = 0x00070000
	IOCTL_DISK_GET_LENGTH_INFO     = 0x0007405C
	IOCTL_DISK_GET_DISK_ATTRIBUTES = 0x000700f0
)

const _DISK_ATTRIBUTE_READ_ONLY = 0x000000002

// 见 MEDIA_TYPE 枚举.
const (
	_MEDIA_TYPE_REMOVABLE = 11
	_MEDIA_TYPE_FIXED     = 12
)
