package raw

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware/firmwaretest"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/stretchr/testify/require"
)

const sectorSize = 512

type testFile struct {
	Long  string // 为空时不写长文件名目录项.
	Short string // 11字节的8.3名称.
	Data  []byte
}

func padName(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func lfnChecksum(short []byte) byte {
	var sum byte
	for _, c := range short[:11] {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// lfnEntries 按磁盘上的存放顺序(逆序)生成长文件名目录项.
func lfnEntries(long string, short []byte) [][]byte {
	chars := utf16.Encode([]rune(long))
	n := (len(chars) + 12) / 13
	if len(chars)%13 != 0 {
		chars = append(chars, 0x0000)
	}
	for len(chars) < n*13 {
		chars = append(chars, 0xFFFF)
	}
	offsets := []int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
	var out [][]byte
	for seq := n; seq >= 1; seq-- {
		e := make([]byte, 32)
		e[0] = byte(seq)
		if seq == n {
			e[0] |= 0x40
		}
		e[11] = 0x0F
		e[13] = lfnChecksum(short)
		for i, off := range offsets {
			binary.LittleEndian.PutUint16(e[off:], chars[(seq-1)*13+i])
		}
		out = append(out, e)
	}
	return out
}

// mkFAT16 在 part 上格式化FAT16: 每簇1扇区, 1个保留扇区, 2个FAT, 512个根目录项.
func mkFAT16(part []byte, label string, files []testFile) {
	total := len(part) / sectorSize
	fatSize := (total*2 + sectorSize - 1) / sectorSize
	rootSecs := 512 * 32 / sectorSize

	s := part[:sectorSize]
	s[0], s[1], s[2] = 0xEB, 0x3C, 0x90
	copy(s[3:], "MSDOS5.0")
	binary.LittleEndian.PutUint16(s[11:], sectorSize)
	s[13] = 1
	binary.LittleEndian.PutUint16(s[14:], 1)
	s[16] = 2
	binary.LittleEndian.PutUint16(s[17:], 512)
	if total < 1<<16 {
		binary.LittleEndian.PutUint16(s[19:], uint16(total))
	} else {
		binary.LittleEndian.PutUint32(s[32:], uint32(total))
	}
	s[21] = 0xF8
	binary.LittleEndian.PutUint16(s[22:], uint16(fatSize))
	s[36] = 0x80
	s[38] = 0x29
	binary.LittleEndian.PutUint32(s[39:], 0x1234abcd)
	copy(s[43:54], padName(label, 11))
	copy(s[54:62], "FAT16   ")
	copy(s[62:], "Non-system disk\r\nPress any key to reboot\r\n")
	firmwaretest.PutBootSignature(s)

	fats := [][]byte{part[sectorSize:], part[(1+fatSize)*sectorSize:]}
	setFAT := func(c, v int) {
		for _, f := range fats {
			binary.LittleEndian.PutUint16(f[c*2:], uint16(v))
		}
	}
	setFAT(0, 0xFFF8)
	setFAT(1, 0xFFFF)

	rootStart := (1 + 2*fatSize) * sectorSize
	root := part[rootStart : rootStart+rootSecs*sectorSize]
	dataStart := rootStart + rootSecs*sectorSize
	slot := 0
	put := func(e []byte) {
		copy(root[slot*32:], e)
		slot++
	}
	vol := padName(label, 32)
	for i := 11; i < 32; i++ {
		vol[i] = 0
	}
	vol[11] = 0x08
	put(vol)

	next := 2
	for _, f := range files {
		short := padName(f.Short, 11)
		if f.Long != "" {
			for _, e := range lfnEntries(f.Long, short) {
				put(e)
			}
		}
		e := make([]byte, 32)
		copy(e, short)
		e[11] = 0x20
		clusters := (len(f.Data) + sectorSize - 1) / sectorSize
		if clusters > 0 {
			binary.LittleEndian.PutUint16(e[26:], uint16(next))
		}
		for i := 0; i < clusters; i++ {
			c := next + i
			copy(part[dataStart+(c-2)*sectorSize:], f.Data[i*sectorSize:min((i+1)*sectorSize, len(f.Data))])
			if i == clusters-1 {
				setFAT(c, 0xFFFF)
			} else {
				setFAT(c, c+1)
			}
		}
		next += clusters
		binary.LittleEndian.PutUint32(e[28:], uint32(len(f.Data)))
		put(e)
	}
}

func iconData() []byte {
	b := make([]byte, 1500)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// buildMBRImage 磁盘布局:
//
//	LBA 2048  FAT16 主分区 "BOOTVOL", 6000 扇区
//	LBA 8192  扩展分区, 4096 扇区, 其中偏移63处为ext4逻辑分区
func buildMBRImage() []byte {
	data := make([]byte, sectorSize*12288)
	firmwaretest.FillBootSector(data, 0x20)
	binary.LittleEndian.PutUint32(data[mbrDiskSignatureOffset:], 0xdeadbeef)
	firmwaretest.PutMBREntry(data, 0, table.MBRPartitionBootable, table.FAT16Range32MBTo2GB, 2048, 6000)
	firmwaretest.PutMBREntry(data, 1, table.MBRPartitionNotBootable, table.ExtendLBA, 8192, 4096)

	mkFAT16(data[2048*sectorSize:8048*sectorSize], "BOOTVOL", []testFile{
		{Short: "BOOTMGR", Data: []byte("bootmgr")},
		{Long: ".VolumeIcon.png", Short: "VOLUME~1PNG", Data: iconData()},
	})

	ebr := data[8192*sectorSize:]
	firmwaretest.PutMBREntry(ebr, 0, 0, table.Linux, 63, 2000)
	firmwaretest.PutBootSignature(ebr)
	sb := data[(8192+63)*sectorSize:]
	binary.LittleEndian.PutUint16(sb[fossick.EXTMagicOffset:], fossick.EXTMagic)
	binary.LittleEndian.PutUint32(sb[fossick.EXTIncompatOffset:], fossick.EXTIncompatExtents)
	return data
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
