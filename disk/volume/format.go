package volume

import (
	"fmt"
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// DebugFormat 以Debug模式获取显示输出.
//
// 示例:
// ```
// fs0: "EFI System Partition" [internal, FAT, 100 MiB]
//
//	Path:      PciRoot(0x0)/Pci(0x1f,0x2)/Sata(0x0,0xffff,0x0)/HD(1,GPT,...)
//	WholeDisk: PciRoot(0x0)/Pci(0x1f,0x2)/Sata(0x0,0xffff,0x0)
//	Offset:    0
//
// ```
func (v *Volume) DebugFormat() string {
	number := "--"
	if v.VolNumber != Unnumbered {
		number = fmt.Sprintf("fs%d", v.VolNumber)
	}
	var size string
	if v.BlockIO != nil {
		size = ", " + humanize.IBytes(v.BlockIO.Media().Size())
	}
	lines := []string{fmt.Sprintf("%s: %q [%s, %s%s]", number, v.VolName, v.DiskKind, v.FSType, size)}
	add := func(k string, val interface{}) {
		lines = append(lines, fmt.Sprintf("\t%-10s %v", k+":", val))
	}
	if len(v.DevicePath) > 0 {
		add("Path", v.DevicePath)
	}
	if len(v.WholeDiskDevicePath) > 0 {
		add("WholeDisk", v.WholeDiskDevicePath)
	}
	add("Offset", v.BlockIOOffset)
	if !v.VolUUID.IsZero() {
		add("UUID", v.VolUUID)
	}
	if v.PartGUID != (efi.GUID{}) {
		add("PartGUID", v.PartGUID)
		add("PartName", v.PartName)
	}
	if v.IsMBRPartition {
		add("MBRSlot", v.MBRPartitionIndex)
	}
	if v.HasBootCode {
		add("BootCode", fmt.Sprintf("%s (%s)", v.OSName, v.OSIconName))
	}
	var flags []string
	if v.IsReadable {
		flags = append(flags, "readable")
	}
	if v.IsMarkedReadOnly {
		flags = append(flags, "read-only")
	}
	if v.IsAppleLegacy {
		flags = append(flags, "apple-legacy")
	}
	if v.IsWholeDisk() {
		flags = append(flags, "whole-disk")
	}
	if len(flags) > 0 {
		add("Flags", strings.Join(flags, ","))
	}
	if v.MBRPartitionTable != nil {
		var blockSize uint32 = 512
		if v.BlockIO != nil {
			blockSize = v.BlockIO.Media().BlockSize
		}
		for _, l := range strings.Split(v.MBRPartitionTable.DebugFormat(blockSize), "\n") {
			lines = append(lines, "\t\t"+l)
		}
	}
	return strings.Join(lines, "\n")
}

// DebugFormat 依次输出所有卷.
func (r *Registry) DebugFormat() string {
	parts := make([]string, 0, len(r.volumes)+1)
	parts = append(parts, fmt.Sprintf("Found %d volume(s).", len(r.volumes)))
	for _, v := range r.volumes {
		parts = append(parts, v.DebugFormat())
	}
	return strings.Join(parts, "\n\n")
}

func (r *Registry) indexOf(target *Volume) int {
	for i, v := range r.volumes {
		if v == target {
			return i
		}
	}
	return -1
}

// JSONFormat 以JSON输出卷集合.
func (r *Registry) JSONFormat() (string, error) {
	var err error
	doc := `{"volumes":[]}`
	set := func(path string, val interface{}) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, path, val)
	}
	set("count", len(r.volumes))
	set("self", r.indexOf(r.self))
	set("discovered_root", r.indexOf(r.discoveredRoot))
	for i, v := range r.volumes {
		p := fmt.Sprintf("volumes.%d.", i)
		set(p+"index", i)
		set(p+"number", v.VolNumber)
		set(p+"name", v.VolName)
		set(p+"disk_kind", v.DiskKind.String())
		set(p+"fs_type", v.FSType.String())
		set(p+"readable", v.IsReadable)
		set(p+"read_only", v.IsMarkedReadOnly)
		set(p+"apple_legacy", v.IsAppleLegacy)
		set(p+"whole_disk", v.IsWholeDisk())
		set(p+"has_boot_code", v.HasBootCode)
		set(p+"block_offset", v.BlockIOOffset)
		if v.BlockIO != nil {
			set(p+"size", v.BlockIO.Media().Size())
		}
		if len(v.DevicePath) > 0 {
			set(p+"device_path", v.DevicePath.String())
		}
		if len(v.WholeDiskDevicePath) > 0 {
			set(p+"whole_disk_device_path", v.WholeDiskDevicePath.String())
		}
		if !v.VolUUID.IsZero() {
			set(p+"uuid", v.VolUUID.String())
		}
		if v.PartGUID != (efi.GUID{}) {
			set(p+"part_guid", v.PartGUID.String())
			set(p+"part_type_guid", v.PartTypeGUID.String())
			set(p+"part_name", v.PartName)
		}
		if v.HasBootCode {
			set(p+"os_name", v.OSName)
			set(p+"os_icon", v.OSIconName)
		}
		if v.IsMBRPartition {
			set(p+"mbr_index", v.MBRPartitionIndex)
		}
		if v.MBRPartitionTable != nil {
			for j, e := range v.MBRPartitionTable {
				q := fmt.Sprintf("%smbr_table.%d.", p, j)
				set(q+"flags", e.Flags)
				set(q+"type", e.Type)
				set(q+"start_lba", e.StartLBA)
				set(q+"size", e.Size)
			}
		}
	}
	if err != nil {
		return "", errors.Wrap(err, "build volume json")
	}
	return doc, nil
}
