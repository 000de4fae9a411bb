package table

type DiskType string

const (
	DTypeGPT DiskType = "GPT"
	DTypeMBR DiskType = "MBR"
	DTypeRAW DiskType = "RAW"
)

// GetDiskType 根据LBA0判断磁盘分区类型.
// 有保护性MBR分区则为GPT, 有合理的分区表则为MBR, 其余均视为无分区.
func GetDiskType(sector0 []byte) DiskType {
	br, err := ParseBootRecord(sector0)
	if err != nil || !br.HasSignature() {
		return DTypeRAW
	}
	for _, p := range br.Partitions {
		if p.Type == EFIGPTProtectiveMBR {
			return DTypeGPT
		}
	}
	t := br.Table()
	if t.Plausible() {
		return DTypeMBR
	}
	return DTypeRAW
}
