package volume

import (
	"testing"

	efi "github.com/canonical/go-efilib"
	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/kisun-bit/bootvol/disk/firmware/firmwaretest"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRescanMBRDisk(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	l.fw.Self = l.partDev.Handle
	r := newTestRegistry(t, l.fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())

	vols := r.Volumes()
	require.Len(t, vols, 4)

	whole := vols[0]
	assert.True(t, whole.IsWholeDisk())
	assert.Equal(t, fossick.WholeDisk, whole.FSType)
	assert.Equal(t, "whole disk volume", whole.VolName)
	assert.False(t, whole.IsReadable)
	assert.Equal(t, Unnumbered, whole.VolNumber)
	assert.True(t, whole.HasBootCode)
	require.NotNil(t, whole.MBRPartitionTable)
	assert.Equal(t, table.ExtendLBA, whole.MBRPartitionTable[1].Type)
	assert.True(t, whole.DevicePath.Equal(whole.WholeDiskDevicePath))

	part := vols[1]
	assert.Equal(t, fossick.Ext4, part.FSType)
	assert.Equal(t, "200MiB ext4 volume", part.VolName)
	assert.True(t, part.IsReadable)
	assert.Equal(t, 0, part.VolNumber)
	assert.Equal(t, DiskKindInternal, part.DiskKind)
	assert.Equal(t, firmware.BlockIO(l.disk), part.WholeDiskBlockIO)
	assert.Nil(t, part.MBRPartitionTable)
	assert.True(t, part.IsMBRPartition)
	assert.Equal(t, 0, part.MBRPartitionIndex)
	assert.Equal(t, "10111213-1415-1617-1819-1a1b1c1d1e1f", part.VolUUID.String())
	assert.Same(t, part, r.SelfVolume())

	for i, want := range []struct {
		index  int
		offset uint64
		fs     fossick.Filesystem
		name   string
	}{
		{4, 4096 + 63, fossick.Ext3, "Partition 5"},
		{5, 4096 + 2048 + 63, fossick.Unknown, "Partition 6"},
	} {
		v := vols[2+i]
		assert.True(t, v.IsSynthesized(), want.name)
		assert.Equal(t, firmware.NilHandle, v.DeviceHandle)
		assert.Equal(t, want.index, v.MBRPartitionIndex)
		assert.Equal(t, want.offset, v.BlockIOOffset)
		assert.Equal(t, want.fs, v.FSType)
		assert.Equal(t, want.name, v.VolName)
		assert.Equal(t, Unnumbered, v.VolNumber)
		assert.False(t, v.IsReadable)
		assert.False(t, v.HasBootCode)
		assert.Nil(t, v.MBRPartitionTable)
		assert.True(t, v.WholeDiskDevicePath.Equal(l.diskPath))
		require.NotNil(t, v.VolBadgeImage)
		assert.Equal(t, "vol_internal", v.VolBadgeImage.Name)
	}

	n, ok := r.ByNumber(0)
	require.True(t, ok)
	assert.Same(t, part, n)
	_, ok = r.ByNumber(Unnumbered)
	assert.False(t, ok)
}

func TestRescanIsDeterministic(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	r := newTestRegistry(t, l.fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())
	first, err := r.JSONFormat()
	require.NoError(t, err)

	require.NoError(t, r.Rescan())
	second, err := r.JSONFormat()
	require.NoError(t, err)
	assert.JSONEq(t, first, second)
	// 重新扫描前关闭上一轮的根目录.
	assert.Equal(t, 1, l.partDir.Closed)
}

func TestRescanExtendedChainEnds(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		data := buildMBRData()
		data[(4096+2048)*sectorSize+510] = 0
		l := newMBRLayout(data)
		r := newTestRegistry(t, l.fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		require.Len(t, r.Volumes(), 3)
		assert.Equal(t, "Partition 5", r.Volumes()[2].VolName)
	})
	t.Run("read error", func(t *testing.T) {
		l := newMBRLayout(buildMBRData())
		l.disk.FailAt = map[uint64]bool{4096: true}
		r := newTestRegistry(t, l.fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		assert.Len(t, r.Volumes(), 2)
	})
}

func TestRescanWithoutLegacyMac(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	r := newTestRegistry(t, l.fw, nil, Config{LegacyType: LegacyUEFI})
	require.NoError(t, r.Rescan())

	vols := r.Volumes()
	require.Len(t, vols, 2)
	assert.False(t, vols[0].HasBootCode)
	assert.Nil(t, vols[0].MBRPartitionTable)
	assert.False(t, vols[1].IsMBRPartition)
	assert.Equal(t, fossick.Ext4, vols[1].FSType)
}

func TestRescanReconcileRequiresMatchingSector(t *testing.T) {
	t.Run("blank sector", func(t *testing.T) {
		data := buildMBRData()
		// 分区首扇区字节和低于阈值时不建立关联.
		for i := 0; i < 440; i++ {
			data[2048*sectorSize+i] = 0
		}
		data[2048*sectorSize] = 1
		l := newMBRLayout(data)
		r := newTestRegistry(t, l.fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		assert.False(t, r.Volumes()[1].IsMBRPartition)
	})
	t.Run("size mismatch", func(t *testing.T) {
		data := buildMBRData()
		l := newMBRLayout(data)
		l.partDev.Blocks = l.disk.Partition(2048, 1024)
		r := newTestRegistry(t, l.fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		assert.False(t, r.Volumes()[1].IsMBRPartition)
	})
}

func TestRescanDuplicateUUID(t *testing.T) {
	fw := firmwaretest.New()
	var dirs []*firmwaretest.Dir
	for port := uint16(0); port < 2; port++ {
		data := make([]byte, sectorSize*4096)
		firmwaretest.PutMBREntry(data, 0, 0, table.Linux, 2048, 2048)
		firmwaretest.PutBootSignature(data)
		putExt(data, 2048, fossick.EXTIncompatFlexBG, 0, 0x77)
		disk := firmwaretest.NewDisk(data, sectorSize)
		dir := &firmwaretest.Dir{Label: "data"}
		dirs = append(dirs, dir)
		fw.Add(sataPath(port), disk, nil)
		fw.Add(withNode(sataPath(port), mbrNode(1, 2048, 2048)), disk.Partition(2048, 2048), dir)
	}
	r := newTestRegistry(t, fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())

	vols := r.Volumes()
	require.Len(t, vols, 4)
	assert.Equal(t, vols[1].VolUUID, vols[3].VolUUID)
	assert.True(t, vols[1].IsReadable)
	assert.Equal(t, 0, vols[1].VolNumber)
	assert.False(t, vols[3].IsReadable)
	assert.Equal(t, Unnumbered, vols[3].VolNumber)
	// 重复卷的根目录仍然保留.
	assert.NotNil(t, vols[3].RootDir)
}

func TestRescanGPTDisk(t *testing.T) {
	espGUID := efi.MakeGUID(0x11111111, 0x2222, 0x3333, 0x4444, [6]uint8{1, 2, 3, 4, 5, 6})
	rootGUID := efi.MakeGUID(0x55555555, 0x6666, 0x7777, 0x8888, [6]uint8{6, 5, 4, 3, 2, 1})

	data := make([]byte, sectorSize*2048)
	firmwaretest.WriteGPT(data, sectorSize, [16]byte{0xaa}, []firmwaretest.GPTPartition{
		{Type: table.GEFISystemPartition, GUID: espGUID, FirstLBA: 34, LastLBA: 1023, Name: "EFI System Partition"},
		{Type: table.FreedesktopRoot, GUID: rootGUID, FirstLBA: 1024, LastLBA: 1990, Attributes: table.GPTAttrReadOnly, Name: "root"},
	})
	firmwaretest.FillBootSector(data[34*sectorSize:], 0x50)
	putExt(data, 1024, fossick.EXTIncompatExtents, 0, 0x01)

	fw := firmwaretest.New()
	disk := firmwaretest.NewDisk(data, sectorSize)
	fw.Add(sataPath(1), disk, nil)
	esp := fw.Add(withNode(sataPath(1), gptNode(1, espGUID, 34, 990)), disk.Partition(34, 990), &firmwaretest.Dir{Size: 990 * sectorSize})
	fw.Add(withNode(sataPath(1), gptNode(2, rootGUID, 1024, 967)), disk.Partition(1024, 967), &firmwaretest.Dir{Size: 967 * sectorSize})
	fw.Self = esp.Handle

	cache := table.NewPartitionCache()
	r := newTestRegistry(t, fw, cache, DefaultConfig())
	require.NoError(t, r.Rescan())
	assert.Equal(t, 2, cache.Len())

	vols := r.Volumes()
	require.Len(t, vols, 3)
	assert.False(t, vols[0].HasBootCode)

	assert.Equal(t, fossick.FAT, vols[1].FSType)
	assert.Equal(t, espGUID, vols[1].PartGUID)
	assert.Equal(t, table.GEFISystemPartition, vols[1].PartTypeGUID)
	assert.Equal(t, "EFI System Partition", vols[1].VolName)
	assert.False(t, vols[1].IsMarkedReadOnly)
	assert.Same(t, vols[1], r.SelfVolume())

	root := vols[2]
	assert.Equal(t, "root", root.PartName)
	assert.Equal(t, "root", root.VolName)
	assert.True(t, root.IsMarkedReadOnly)
	assert.Same(t, root, r.DiscoveredRoot())

	// 重新扫描时旧的分区信息被丢弃后重建.
	require.NoError(t, r.Rescan())
	assert.Equal(t, 2, cache.Len())
	assert.Same(t, r.Volumes()[2], r.DiscoveredRoot())
}

func TestRescanNTFSBootFiles(t *testing.T) {
	build := func(files map[string][]byte) *Volume {
		data := make([]byte, sectorSize*1024)
		firmwaretest.PutMBREntry(data, 0, 0x80, table.NTFS, 64, 512)
		firmwaretest.PutBootSignature(data)
		boot := data[64*sectorSize:]
		firmwaretest.FillBootSector(boot, 0x60)
		copy(boot[fossick.NTFSMagicOffset:], fossick.NTFSMagic)

		fw := firmwaretest.New()
		disk := firmwaretest.NewDisk(data, sectorSize)
		fw.Add(sataPath(0), disk, nil)
		fw.Add(withNode(sataPath(0), mbrNode(1, 64, 512)), disk.Partition(64, 512), &firmwaretest.Dir{Label: "Windows", Files: files})
		r := newTestRegistry(t, fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		require.Len(t, r.Volumes(), 2)
		return r.Volumes()[1]
	}

	v := build(map[string][]byte{"BOOTMGR": {1}})
	assert.Equal(t, fossick.NTFS, v.FSType)
	assert.False(t, v.VolUUID.IsZero())
	assert.True(t, v.HasBootCode)

	v = build(nil)
	assert.Equal(t, fossick.NTFS, v.FSType)
	assert.False(t, v.HasBootCode)
}

func TestRescanDiskKinds(t *testing.T) {
	data := make([]byte, sectorSize*512)
	firmwaretest.FillBootSector(data, 0x20)

	fw := firmwaretest.New()
	fw.Add(usbPath(3), firmwaretest.NewDisk(data, sectorSize), &firmwaretest.Dir{Label: "STICK"})
	fw.Add(withNode(devicepath.Path{devicepath.NewPCIRootNode(0)}, devicepath.New1394Node(0xabcd)), firmwaretest.NewDisk(make([]byte, sectorSize*512), sectorSize), nil)

	cd := firmwaretest.NewDisk(make([]byte, 2048*64), 2048)
	fw.Add(withNode(sataPath(2), devicepath.NewCDROMNode(0, 0, 64)), cd, &firmwaretest.Dir{Label: "CDROM"})

	// 介质厂商节点下的块设备是整盘的别名.
	whole := firmwaretest.NewDisk(data, sectorSize)
	fw.Add(sataPath(4), whole, nil)
	fw.Add(withNode(sataPath(4), devicepath.NewMediaVendorNode(efi.GUID{1}, nil)), whole.Partition(0, 512), nil)

	r := newTestRegistry(t, fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())
	vols := r.Volumes()
	require.Len(t, vols, 5)

	assert.Equal(t, DiskKindExternal, vols[0].DiskKind)
	assert.Equal(t, "STICK", vols[0].VolName)
	assert.Equal(t, DiskKindExternal, vols[1].DiskKind)

	assert.Equal(t, DiskKindOptical, vols[2].DiskKind)
	assert.Equal(t, fossick.ISO9660, vols[2].FSType)
	assert.Equal(t, "CDROM", vols[2].VolName)

	assert.True(t, vols[3].HasBootCode)
	assert.False(t, vols[3].IsAppleLegacy)
	assert.True(t, vols[4].IsAppleLegacy)
	assert.False(t, vols[4].HasBootCode)
}

func TestRescanEnumeration(t *testing.T) {
	t.Run("no devices", func(t *testing.T) {
		r := newTestRegistry(t, firmwaretest.New(), nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		assert.Empty(t, r.Volumes())
		assert.Nil(t, r.SelfVolume())
	})
	t.Run("firmware error", func(t *testing.T) {
		fw := firmwaretest.New()
		fw.LocateErr = firmware.ErrDeviceError
		r := newTestRegistry(t, fw, nil, DefaultConfig())
		err := r.Rescan()
		assert.ErrorIs(t, err, firmware.ErrDeviceError)
	})
	t.Run("missing block io", func(t *testing.T) {
		l := newMBRLayout(buildMBRData())
		r := newTestRegistry(t, l.fw, nil, DefaultConfig())
		require.NoError(t, r.Rescan())
		// 第二轮扫描时设备已被移除.
		l.partDev.Blocks = nil
		require.NoError(t, r.Rescan())
		assert.Len(t, r.Volumes(), 3)
	})
}

func TestTeardownReinit(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	r := newTestRegistry(t, l.fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())

	r.Teardown()
	for _, v := range r.Volumes() {
		assert.Equal(t, firmware.NilHandle, v.DeviceHandle)
		assert.Nil(t, v.BlockIO)
		assert.Nil(t, v.WholeDiskBlockIO)
		assert.Nil(t, v.RootDir)
	}
	assert.Equal(t, 1, l.partDir.Closed)
	assert.Equal(t, "200MiB ext4 volume", r.Volumes()[1].VolName)

	r.Reinit()
	vols := r.Volumes()
	assert.Equal(t, l.diskDev.Handle, vols[0].DeviceHandle)
	assert.True(t, vols[0].IsWholeDisk())

	assert.Equal(t, l.partDev.Handle, vols[1].DeviceHandle)
	assert.Equal(t, firmware.BlockIO(l.part), vols[1].BlockIO)
	assert.Equal(t, firmware.BlockIO(l.disk), vols[1].WholeDiskBlockIO)
	assert.Equal(t, firmware.Directory(l.partDir), vols[1].RootDir)

	for _, v := range vols[2:] {
		assert.Equal(t, firmware.BlockIO(l.disk), v.BlockIO)
		assert.Equal(t, firmware.BlockIO(l.disk), v.WholeDiskBlockIO)
		assert.Nil(t, v.RootDir)
	}
}

func TestLookups(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	r := newTestRegistry(t, l.fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())
	part := r.Volumes()[1]

	v, ok := r.ByName("200mib EXT4 Volume")
	require.True(t, ok)
	assert.Same(t, part, v)
	_, ok = r.ByName("nothing")
	assert.False(t, ok)

	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"fs0", "200MiB ext4 volume", true},
		{"fs0:", "200MiB ext4 volume", true},
		{"fs1", "", false},
		{"fsx", "", false},
		{"fs", "", false},
		{"hd0", "", false},
	} {
		got, ok := r.VolumeNumberToName(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	load := withNode(l.partPath, devicepath.NewFilePathNode(`\EFI\BOOT\BOOTX64.EFI`))
	v, file, err := r.FindVolumeAndFilename(load.Bytes())
	require.NoError(t, err)
	assert.Same(t, part, v)
	assert.Equal(t, `\EFI\BOOT\BOOTX64.EFI`, file)

	other := withNode(sataPath(9), devicepath.NewFilePathNode(`\vmlinuz`))
	v, file, err = r.FindVolumeAndFilename(other.Bytes())
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, `\vmlinuz`, file)

	_, _, err = r.FindVolumeAndFilename([]byte{0x04, 0x04, 0x02, 0x00})
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	l := newMBRLayout(buildMBRData())
	l.fw.Self = l.partDev.Handle
	r := newTestRegistry(t, l.fw, nil, DefaultConfig())
	require.NoError(t, r.Rescan())

	out := r.DebugFormat()
	assert.Contains(t, out, "Found 4 volume(s).")
	assert.Contains(t, out, `fs0: "200MiB ext4 volume" [internal, ext4, 1.0 MiB]`)
	assert.Contains(t, out, "MBRSlot:")
	assert.Contains(t, out, "Extended, LBA")

	doc, err := r.JSONFormat()
	require.NoError(t, err)
	require.True(t, gjson.Valid(doc))
	assert.Equal(t, int64(4), gjson.Get(doc, "count").Int())
	assert.Equal(t, int64(1), gjson.Get(doc, "self").Int())
	assert.Equal(t, int64(-1), gjson.Get(doc, "discovered_root").Int())
	assert.Equal(t, "ext4", gjson.Get(doc, "volumes.1.fs_type").String())
	assert.Equal(t, int64(0), gjson.Get(doc, "volumes.1.mbr_index").Int())
	assert.True(t, gjson.Get(doc, "volumes.1.readable").Bool())
	assert.True(t, gjson.Get(doc, "volumes.0.whole_disk").Bool())
	assert.Equal(t, int64(table.ExtendLBA), gjson.Get(doc, "volumes.0.mbr_table.1.type").Int())
	assert.Equal(t, int64(4096), gjson.Get(doc, "volumes.0.mbr_table.1.start_lba").Int())
	assert.Equal(t, "Partition 5", gjson.Get(doc, "volumes.2.name").String())
	assert.Equal(t, int64(4096+63), gjson.Get(doc, "volumes.2.block_offset").Int())
	assert.Equal(t, int64(-1), gjson.Get(doc, "volumes.2.number").Int())
	assert.False(t, gjson.Get(doc, "volumes.2.device_path").Exists())
	assert.Equal(t, gjson.Get(doc, "volumes.0.device_path").String(), gjson.Get(doc, "volumes.2.whole_disk_device_path").String())
	assert.Len(t, gjson.Get(doc, "volumes").Array(), 4)
}
