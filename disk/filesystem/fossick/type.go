package fossick

import (
	"encoding/hex"
	"strings"
)

type Filesystem string

func (fs_ Filesystem) String() string {
	return string(fs_)
}

// TypeName 返回用于卷显示名的文件系统名称, 未知类型返回空串.
func (fs_ Filesystem) TypeName() string {
	return filesystemTypeNames[fs_]
}

var filesystemTypeNames = map[Filesystem]string{
	WholeDisk: "whole disk",
	FAT:       "FAT",
	HFSPlus:   "HFS+",
	Ext2:      "ext2",
	Ext3:      "ext3",
	Ext4:      "ext4",
	ReiserFS:  "ReiserFS",
	Btrfs:     "Btrfs",
	XFS:       "XFS",
	ISO9660:   "ISO-9660",
	NTFS:      "NTFS",
}

// UUID 文件系统标识. 对NTFS而言只有前8字节(卷序列号)有效. 全零表示未知.
type UUID [16]byte

func (u UUID) IsZero() bool {
	return u == UUID{}
}

func (u UUID) String() string {
	h := hex.EncodeToString(u[:])
	return strings.Join([]string{h[0:8], h[8:12], h[12:16], h[16:20], h[20:32]}, "-")
}

// Detection 一次嗅探的结果.
type Detection struct {
	Type Filesystem
	UUID UUID
}
