package raw

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const (
	fatDirEntrySize   = 32
	fatAttrVolumeID   = 0x08
	fatAttrDirectory  = 0x10
	fatAttrLongName   = 0x0F
	fatEntryDeleted   = 0xE5
	fatEntryEnd       = 0x00
	fatLongNameLast   = 0x40
	fatExtBootSig     = 0x29
	fatNoNameLabel    = "NO NAME"
	fat12MaxClusters  = 4085
	fat16MaxClusters  = 65525
	fatMaxChainLength = 1 << 20
)

var errNotFAT = errors.Wrap(firmware.ErrUnsupported, "not a fat volume")

type fatKind int

const (
	fat12 fatKind = 12
	fat16 fatKind = 16
	fat32 fatKind = 32
)

// bpb BIOS Parameter Block 的公共部分, 共36字节.
type bpb struct {
	Jump              [3]byte `struc:"[3]byte"`
	OEMName           [8]byte `struc:"[8]byte"`
	BytesPerSector    uint16  `struc:"uint16,little"`
	SectorsPerCluster uint8   `struc:"uint8"`
	ReservedSectors   uint16  `struc:"uint16,little"`
	NumFATs           uint8   `struc:"uint8"`
	RootEntries       uint16  `struc:"uint16,little"`
	TotalSectors16    uint16  `struc:"uint16,little"`
	Media             uint8   `struc:"uint8"`
	FATSize16         uint16  `struc:"uint16,little"`
	SectorsPerTrack   uint16  `struc:"uint16,little"`
	NumHeads          uint16  `struc:"uint16,little"`
	HiddenSectors     uint32  `struc:"uint32,little"`
	TotalSectors32    uint32  `struc:"uint32,little"`
}

// extBPB FAT12/16 的扩展参数块, FAT32 中位于偏移64处.
type extBPB struct {
	DriveNumber uint8    `struc:"uint8"`
	Reserved    uint8    `struc:"uint8"`
	BootSig     uint8    `struc:"uint8"`
	VolumeID    uint32   `struc:"uint32,little"`
	VolumeLabel [11]byte `struc:"[11]byte"`
	FSType      [8]byte  `struc:"[8]byte"`
}

type bpb32 struct {
	FATSize32   uint32   `struc:"uint32,little"`
	ExtFlags    uint16   `struc:"uint16,little"`
	FSVersion   uint16   `struc:"uint16,little"`
	RootCluster uint32   `struc:"uint32,little"`
	FSInfo      uint16   `struc:"uint16,little"`
	BackupBoot  uint16   `struc:"uint16,little"`
	Reserved    [12]byte `struc:"[12]byte"`
	Ext         extBPB
}

type dirEntry struct {
	Name         [11]byte `struc:"[11]byte"`
	Attr         uint8    `struc:"uint8"`
	NTRes        uint8    `struc:"uint8"`
	CrtTimeTenth uint8    `struc:"uint8"`
	CrtTime      uint16   `struc:"uint16,little"`
	CrtDate      uint16   `struc:"uint16,little"`
	LstAccDate   uint16   `struc:"uint16,little"`
	FstClusHI    uint16   `struc:"uint16,little"`
	WrtTime      uint16   `struc:"uint16,little"`
	WrtDate      uint16   `struc:"uint16,little"`
	FstClusLO    uint16   `struc:"uint16,little"`
	FileSize     uint32   `struc:"uint32,little"`
}

type fatFile struct {
	LongName  string
	ShortName string
	Attr      uint8
	Cluster   uint32
	Size      uint32
}

func (f *fatFile) matches(name string) bool {
	name = strings.TrimLeft(name, `\/`)
	return strings.EqualFold(f.ShortName, name) || (f.LongName != "" && strings.EqualFold(f.LongName, name))
}

// fatVolume 只读的FAT12/16/32根目录, 实现 firmware.Directory.
type fatVolume struct {
	r           io.ReaderAt
	readOnly    bool
	kind        fatKind
	bytesPerSec uint32
	clusterSize uint32
	totalSecs   uint32
	fatOffset   int64
	dataOffset  int64
	clusters    uint32
	label       string
	files       []*fatFile
	closed      bool
}

// openFAT 校验引导扇区中的BPB并读取根目录. 非FAT卷返回 firmware.ErrUnsupported.
func openFAT(r io.ReaderAt, readOnly bool) (*fatVolume, error) {
	sector := make([]byte, 512)
	if _, err := r.ReadAt(sector, 0); err != nil {
		return nil, errors.Wrap(err, "read boot sector")
	}
	if binary.LittleEndian.Uint16(sector[510:]) != 0xAA55 {
		return nil, errNotFAT
	}
	var b bpb
	if err := struc.Unpack(bytes.NewReader(sector), &b); err != nil {
		return nil, errors.Wrap(err, "unpack bpb")
	}
	if b.Jump[0] != 0xEB && b.Jump[0] != 0xE9 {
		return nil, errNotFAT
	}
	switch b.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, errNotFAT
	}
	spc := b.SectorsPerCluster
	if spc == 0 || spc&(spc-1) != 0 || b.ReservedSectors == 0 || b.NumFATs == 0 {
		return nil, errNotFAT
	}

	var ext extBPB
	var b32 bpb32
	fatSize := uint32(b.FATSize16)
	if fatSize == 0 {
		if err := struc.Unpack(bytes.NewReader(sector[36:]), &b32); err != nil {
			return nil, errors.Wrap(err, "unpack fat32 bpb")
		}
		fatSize = b32.FATSize32
		ext = b32.Ext
	} else if err := struc.Unpack(bytes.NewReader(sector[36:]), &ext); err != nil {
		return nil, errors.Wrap(err, "unpack extended bpb")
	}
	total := uint32(b.TotalSectors16)
	if total == 0 {
		total = b.TotalSectors32
	}
	if fatSize == 0 || total == 0 {
		return nil, errNotFAT
	}

	bps := uint32(b.BytesPerSector)
	rootSecs := (uint32(b.RootEntries)*fatDirEntrySize + bps - 1) / bps
	firstData := uint32(b.ReservedSectors) + uint32(b.NumFATs)*fatSize + rootSecs
	if total <= firstData {
		return nil, errNotFAT
	}
	v := &fatVolume{
		r:           r,
		readOnly:    readOnly,
		bytesPerSec: bps,
		clusterSize: bps * uint32(spc),
		totalSecs:   total,
		fatOffset:   int64(b.ReservedSectors) * int64(bps),
		dataOffset:  int64(firstData) * int64(bps),
		clusters:    (total - firstData) / uint32(spc),
	}
	switch {
	case v.clusters < fat12MaxClusters:
		v.kind = fat12
	case v.clusters < fat16MaxClusters:
		v.kind = fat16
	default:
		v.kind = fat32
	}
	if v.kind == fat32 && b.RootEntries != 0 {
		return nil, errNotFAT
	}
	if ext.BootSig == fatExtBootSig {
		v.label = decodeLabel(ext.VolumeLabel[:])
	}

	var root []byte
	var err error
	if v.kind == fat32 {
		root, err = v.readChain(b32.RootCluster, -1)
	} else {
		root = make([]byte, rootSecs*bps)
		_, err = r.ReadAt(root, int64(firstData-rootSecs)*int64(bps))
	}
	if err != nil {
		return nil, errors.Wrap(err, "read root directory")
	}
	v.parseDirectory(root)
	return v, nil
}

// decodeOEM 短文件名与卷标以OEM代码页437存储, 以空格填充.
func decodeOEM(raw []byte) string {
	s, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(s), " \x00")
}

func decodeLabel(raw []byte) string {
	label := decodeOEM(raw)
	if label == fatNoNameLabel {
		return ""
	}
	return label
}

func shortName(raw [11]byte) string {
	name := raw
	if name[0] == 0x05 {
		name[0] = fatEntryDeleted
	}
	base := decodeOEM(name[:8])
	ext := decodeOEM(name[8:])
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// longNamePart 解码一个长文件名目录项中的13个UTF-16字符.
func longNamePart(e []byte) []uint16 {
	var chars []uint16
	for _, span := range [][2]int{{1, 11}, {14, 26}, {28, 32}} {
		for i := span[0]; i < span[1]; i += 2 {
			c := binary.LittleEndian.Uint16(e[i:])
			if c == 0x0000 || c == 0xFFFF {
				return chars
			}
			chars = append(chars, c)
		}
	}
	return chars
}

func (v *fatVolume) parseDirectory(buf []byte) {
	var lfn [][]uint16
	for off := 0; off+fatDirEntrySize <= len(buf); off += fatDirEntrySize {
		e := buf[off : off+fatDirEntrySize]
		if e[0] == fatEntryEnd {
			return
		}
		if e[0] == fatEntryDeleted {
			lfn = nil
			continue
		}
		if e[11]&0x3F == fatAttrLongName {
			if e[0]&fatLongNameLast != 0 {
				lfn = nil
			}
			lfn = append(lfn, longNamePart(e))
			continue
		}
		var de dirEntry
		if err := struc.Unpack(bytes.NewReader(e), &de); err != nil {
			lfn = nil
			continue
		}
		if de.Attr&fatAttrVolumeID != 0 {
			if label := decodeLabel(de.Name[:]); label != "" {
				v.label = label
			}
			lfn = nil
			continue
		}
		f := &fatFile{
			ShortName: shortName(de.Name),
			Attr:      de.Attr,
			Cluster:   uint32(de.FstClusHI)<<16 | uint32(de.FstClusLO),
			Size:      de.FileSize,
		}
		// 长文件名目录项按逆序存放.
		var name []uint16
		for i := len(lfn) - 1; i >= 0; i-- {
			name = append(name, lfn[i]...)
		}
		if len(name) > 0 {
			f.LongName = string(utf16.Decode(name))
		}
		lfn = nil
		v.files = append(v.files, f)
	}
}

func (v *fatVolume) badCluster() uint32 {
	switch v.kind {
	case fat12:
		return 0xFF7
	case fat16:
		return 0xFFF7
	}
	return 0x0FFFFFF7
}

func (v *fatVolume) next(c uint32) (uint32, error) {
	var buf [4]byte
	switch v.kind {
	case fat12:
		off := int64(c + c/2)
		if _, err := v.r.ReadAt(buf[:2], v.fatOffset+off); err != nil {
			return 0, err
		}
		n := uint32(binary.LittleEndian.Uint16(buf[:2]))
		if c&1 != 0 {
			return n >> 4, nil
		}
		return n & 0xFFF, nil
	case fat16:
		if _, err := v.r.ReadAt(buf[:2], v.fatOffset+int64(c)*2); err != nil {
			return 0, err
		}
		return uint32(binary.LittleEndian.Uint16(buf[:2])), nil
	}
	if _, err := v.r.ReadAt(buf[:], v.fatOffset+int64(c)*4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]) & 0x0FFFFFFF, nil
}

// readChain 读取从簇 start 开始的簇链, limit 非负时读取 limit 字节后停止.
func (v *fatVolume) readChain(start uint32, limit int64) ([]byte, error) {
	var out []byte
	c := start
	for i := 0; c >= 2 && c < v.badCluster(); i++ {
		if limit >= 0 && int64(len(out)) >= limit {
			break
		}
		if i > fatMaxChainLength || c-2 >= v.clusters {
			return nil, errors.Errorf("corrupt cluster chain at %d", c)
		}
		buf := make([]byte, v.clusterSize)
		off := v.dataOffset + int64(c-2)*int64(v.clusterSize)
		if _, err := v.r.ReadAt(buf, off); err != nil {
			return nil, errors.Wrapf(err, "read cluster %d", c)
		}
		out = append(out, buf...)
		n, err := v.next(c)
		if err != nil {
			return nil, errors.Wrapf(err, "read fat entry %d", c)
		}
		c = n
	}
	if limit >= 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *fatVolume) lookup(name string) (*fatFile, bool) {
	for _, f := range v.files {
		if f.matches(name) {
			return f, true
		}
	}
	return nil, false
}

func (v *fatVolume) Info() (*firmware.FileSystemInfo, error) {
	if v.closed {
		return nil, errors.Wrap(firmware.ErrDeviceError, "volume closed")
	}
	return &firmware.FileSystemInfo{
		ReadOnly:    v.readOnly,
		VolumeSize:  uint64(v.totalSecs) * uint64(v.bytesPerSec),
		BlockSize:   v.clusterSize,
		VolumeLabel: v.label,
	}, nil
}

func (v *fatVolume) FileExists(name string) bool {
	_, ok := v.lookup(name)
	return ok && !v.closed
}

func (v *fatVolume) OpenFile(name string) (io.ReadCloser, error) {
	if v.closed {
		return nil, errors.Wrap(firmware.ErrDeviceError, "volume closed")
	}
	f, ok := v.lookup(name)
	if !ok {
		return nil, errors.Wrapf(firmware.ErrNotFound, "open %s", name)
	}
	if f.Attr&fatAttrDirectory != 0 {
		return nil, errors.Wrapf(firmware.ErrUnsupported, "%s is a directory", name)
	}
	data, err := v.readChain(f.Cluster, int64(f.Size))
	if err != nil {
		return nil, errors.Wrapf(firmware.ErrDeviceError, "read %s: %v", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (v *fatVolume) Close() error {
	v.closed = true
	return nil
}

// ProbeFAT 判断 r 开头是否为可读取根目录的FAT卷.
func ProbeFAT(r io.ReaderAt) bool {
	v, err := openFAT(r, true)
	if err != nil {
		return false
	}
	_ = v.Close()
	return true
}
