package ioctl

// DeviceInfo 镜像文件或块设备的几何信息.
type DeviceInfo struct {
	Path       string
	Size       uint64
	SectorSize uint32
	Removable  bool
	ReadOnly   bool
	// IsDevice 为false表示普通镜像文件.
	IsDevice bool
}

// ########################################## Windows平台相关 ##########################################

type GET_LENGTH_INFORMATION struct {
	Length int64
}

type GET_DISK_ATTRIBUTES struct {
	Version    uint32
	Reserved1  uint32
	Attributes uint64
}

type DISK_GEOMETRY struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}
