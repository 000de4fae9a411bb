package volume

import (
	"encoding/binary"
	"testing"

	efi "github.com/canonical/go-efilib"
	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware/firmwaretest"
	"github.com/kisun-bit/bootvol/disk/table"
	"go.uber.org/zap/zaptest"
)

const sectorSize = 512

func sataPath(port uint16) devicepath.Path {
	return devicepath.Path{
		devicepath.NewPCIRootNode(0),
		devicepath.NewPCINode(0x1f, 2),
		devicepath.NewSATANode(port, 0xffff, 0),
	}
}

func usbPath(port uint8) devicepath.Path {
	return devicepath.Path{
		devicepath.NewPCIRootNode(0),
		devicepath.NewPCINode(0x14, 0),
		devicepath.NewUSBNode(port, 0),
	}
}

func withNode(p devicepath.Path, n devicepath.Node) devicepath.Path {
	return append(append(devicepath.Path{}, p...), n)
}

func mbrNode(number uint32, start, size uint64) devicepath.Node {
	return devicepath.NewHardDriveNode(devicepath.HardDrive{
		PartitionNumber: number,
		PartitionStart:  start,
		PartitionSize:   size,
		MBRType:         devicepath.PartitionFormatMBR,
		SignatureType:   devicepath.SignatureTypeMBR,
	})
}

func gptNode(number uint32, guid efi.GUID, start, size uint64) devicepath.Node {
	return devicepath.NewHardDriveNode(devicepath.HardDrive{
		PartitionNumber: number,
		PartitionStart:  start,
		PartitionSize:   size,
		Signature:       [16]byte(guid),
		MBRType:         devicepath.PartitionFormatGPT,
		SignatureType:   devicepath.SignatureTypeGUID,
	})
}

// putExt 在 lba 处的分区内写入ext超级块特征.
func putExt(data []byte, lba uint64, incompat, compat uint32, uuidSeed byte) {
	off := lba * sectorSize
	binary.LittleEndian.PutUint16(data[off+fossick.EXTMagicOffset:], fossick.EXTMagic)
	binary.LittleEndian.PutUint32(data[off+fossick.EXTCompatOffset:], compat)
	binary.LittleEndian.PutUint32(data[off+fossick.EXTIncompatOffset:], incompat)
	for i := uint64(0); i < fossick.FilesystemUUIDLength; i++ {
		data[off+fossick.EXTUUIDOffset+i] = uuidSeed + byte(i)
	}
}

// mbrLayout 带扩展分区的测试磁盘:
//
//	LBA 0       MBR, 含引导代码
//	LBA 2048    主分区 ext4, 2048 扇区
//	LBA 4096    扩展分区, 8192 扇区
//	  +63       逻辑分区 ext3
//	  +2048+63  逻辑分区 swap
type mbrLayout struct {
	fw       *firmwaretest.Firmware
	disk     *firmwaretest.Disk
	part     *firmwaretest.Disk
	partDir  *firmwaretest.Dir
	diskDev  *firmwaretest.Device
	partDev  *firmwaretest.Device
	diskPath devicepath.Path
	partPath devicepath.Path
}

func buildMBRData() []byte {
	data := make([]byte, sectorSize*16384)
	mbr := data[:sectorSize]
	firmwaretest.FillBootSector(mbr, 0x20)
	firmwaretest.PutMBREntry(mbr, 0, table.MBRPartitionBootable, table.Linux, 2048, 2048)
	firmwaretest.PutMBREntry(mbr, 1, table.MBRPartitionNotBootable, table.ExtendLBA, 4096, 8192)

	firmwaretest.FillBootSector(data[2048*sectorSize:], 0x40)
	putExt(data, 2048, fossick.EXTIncompatExtents, 0, 0x10)

	ebr1 := data[4096*sectorSize:]
	firmwaretest.PutMBREntry(ebr1, 0, 0, table.Linux, 63, 1000)
	firmwaretest.PutMBREntry(ebr1, 1, 0, table.ExtendCHS, 2048, 2048)
	firmwaretest.PutBootSignature(ebr1)
	putExt(data, 4096+63, 0, fossick.EXTCompatHasJournal, 0x30)

	ebr2 := data[(4096+2048)*sectorSize:]
	firmwaretest.PutMBREntry(ebr2, 0, 0, table.LinuxSwap, 63, 500)
	firmwaretest.PutBootSignature(ebr2)
	return data
}

func newMBRLayout(data []byte) *mbrLayout {
	l := &mbrLayout{fw: firmwaretest.New()}
	l.disk = firmwaretest.NewDisk(data, sectorSize)
	l.part = l.disk.Partition(2048, 2048)
	l.partDir = &firmwaretest.Dir{Size: 200 << 20, Files: map[string][]byte{}}
	l.diskPath = sataPath(0)
	l.partPath = withNode(l.diskPath, mbrNode(1, 2048, 2048))
	l.diskDev = l.fw.Add(l.diskPath, l.disk, nil)
	l.partDev = l.fw.Add(l.partPath, l.part, l.partDir)
	return l
}

func newTestRegistry(t *testing.T, fw *firmwaretest.Firmware, tables PartitionTables, cfg Config) *Registry {
	t.Helper()
	return NewRegistry(fw, tables, cfg, zaptest.NewLogger(t).Sugar())
}
