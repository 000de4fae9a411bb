package volume

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/thoas/go-funk"
)

const (
	ieeePrefixes      = " KMGTPEZ"
	unknownVolumeName = "unknown volume"
)

// SizeInIEEEUnits 以IEEE-1541单位表示字节数, 如 "200MiB", "512-byte".
// 数值向下取整.
func SizeInIEEEUnits(size uint64) string {
	idx := 0
	for size > 1024 && idx < len(ieeePrefixes)-1 {
		idx++
		size /= 1024
	}
	if ieeePrefixes[idx] == ' ' {
		return fmt.Sprintf("%d-byte", size)
	}
	return fmt.Sprintf("%d%ciB", size, ieeePrefixes[idx])
}

// GetVolumeName 依次尝试: 文件系统卷标, 分区名, 大小加类型, 类型, 最后退回 "unknown volume".
func GetVolumeName(v *Volume) string {
	var (
		found   string
		hasInfo bool
		size    uint64
	)
	if v.RootDir != nil {
		if info, err := v.RootDir.Info(); err == nil && info != nil {
			hasInfo = true
			size = info.VolumeSize
			found = info.VolumeLabel
		}
	}
	if found == "" && v.PartName != "" && !funk.ContainsString(table.IgnorePartitionNames, v.PartName) {
		found = v.PartName
	}
	if found == "" && hasInfo {
		parts := []string{SizeInIEEEUnits(size)}
		if name := v.FSType.TypeName(); name != "" {
			parts = append(parts, name)
		}
		found = strings.Join(append(parts, "volume"), " ")
	}
	if found == "" {
		if name := v.FSType.TypeName(); name != "" {
			found = name + " volume"
		} else {
			found = unknownVolumeName
		}
	}
	return found
}

// partitionName MBR槽位 index(0起始) 的默认卷名.
func partitionName(index int) string {
	return fmt.Sprintf("Partition %d", index+1)
}

// VolumeNumberToName 将 "fs<N>" 形式的名称转换为编号为N的卷名.
// 与固件shell的映射名一致, "fs" 后的前导数字即为编号.
func (r *Registry) VolumeNumberToName(name string) (string, bool) {
	if len(name) <= 2 || !strings.HasPrefix(name, "fs") {
		return "", false
	}
	digits := name[2:]
	end := strings.IndexFunc(digits, func(c rune) bool { return !unicode.IsDigit(c) })
	if end == 0 {
		return "", false
	}
	if end > 0 {
		digits = digits[:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", false
	}
	v, ok := r.ByNumber(n)
	if !ok {
		return "", false
	}
	return v.VolName, true
}
