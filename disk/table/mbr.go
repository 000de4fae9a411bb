package table

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
)

var (
	ErrNoBootSignature = errors.New("invalid boot signature")
	ErrChainTooLong    = errors.New("extended partition chain too long")
)

// BootRecord MBR/EBR 引导扇区结构.
// 具体见 https://en.wikipedia.org/wiki/Master_boot_record.
type BootRecord struct {
	LBA           uint64                               `struc:"skip"`      // 引导扇区所在LBA.
	BootLoader    []byte                               `struc:"[446]byte"` // 0x0000, 446.
	Partitions    [MBRPartitionEntryCount]MBRPartition // 0x01BE, 64, 所有多字节字段均为小端序.
	BootSignature uint16                               `struc:"uint16,little"` // 0x01FE, 2.
}

// EBR 扩展引导记录, 结构与MBR一致.
// 具体见 https://en.wikipedia.org/wiki/Extended_boot_record.
// 表项中的起始LBA均为相对值:
//  1. 逻辑分区表项相对于本EBR所在扇区.
//  2. 指向下一个EBR的扩展表项相对于扩展分区起始扇区.
type EBR = BootRecord

// ParseBootRecord 解析一个512字节的引导扇区.
func ParseBootRecord(sector []byte) (*BootRecord, error) {
	if len(sector) < MBRDefaultLBASize {
		return nil, errors.Errorf("boot record needs %d bytes, got %d", MBRDefaultLBASize, len(sector))
	}
	br := new(BootRecord)
	if err := struc.Unpack(bytes.NewReader(sector[:MBRDefaultLBASize]), br); err != nil {
		return nil, errors.Wrap(err, "unpack boot record")
	}
	for i := range br.Partitions {
		br.Partitions[i].Index = i
	}
	return br, nil
}

// ReadBootRecord 从块设备读取并解析 lba 处的引导扇区.
func ReadBootRecord(bio firmware.BlockIO, lba uint64) (*BootRecord, error) {
	sector, err := firmware.ReadSectors(bio, lba, MBRDefaultLBASize)
	if err != nil {
		return nil, errors.Wrapf(err, "read boot record at lba %d", lba)
	}
	br, err := ParseBootRecord(sector)
	if err != nil {
		return nil, err
	}
	br.LBA = lba
	return br, nil
}

// HasSignature 若扇区以0xAA55结尾, 则返回true.
func (br *BootRecord) HasSignature() bool {
	return br.BootSignature == MBRSignature
}

// Table 返回该扇区的主分区表.
func (br *BootRecord) Table() MBRTable {
	return MBRTable(br.Partitions)
}

// MBRTable 引导扇区偏移446处的4个分区表项.
type MBRTable [MBRPartitionEntryCount]MBRPartition

// ParseMBRTable 从引导扇区样本中取出分区表, 仅当表看起来合理时返回.
// 合理是指: 扇区签名有效, 每个表项的引导标志只能是0x00或0x80, 且至少有一个表项起始LBA与大小均非零.
func ParseMBRTable(sample []byte) (*MBRTable, bool) {
	br, err := ParseBootRecord(sample)
	if err != nil || !br.HasSignature() {
		return nil, false
	}
	t := br.Table()
	if !t.Plausible() {
		return nil, false
	}
	return &t, true
}

// Plausible 分区表合理性检查, 见 ParseMBRTable.
func (t *MBRTable) Plausible() bool {
	found := false
	for _, p := range t {
		if p.StartLBA != 0 && p.Size != 0 {
			found = true
		}
	}
	for _, p := range t {
		if !p.HasValidFlags() {
			return false
		}
	}
	return found
}

// ExtendedEntries 返回所有扩展类型的表项.
func (t *MBRTable) ExtendedEntries() []MBRPartition {
	var out []MBRPartition
	for _, p := range t {
		if p.IsExtend() {
			out = append(out, p)
		}
	}
	return out
}

// DebugFormat 以Debug模式获取显示输出.
//
// 示例:
// ```
// Number Boot      Start       Size            Bytes    System
//
//	0    *       2048    2097152            1 GiB    Linux
//	1         2099200   81786880            39 GiB   Extended, LBA
//
// ```
func (t *MBRTable) DebugFormat(sectorSize uint32) string {
	lines := []string{fmt.Sprintf("%6s %4s %10s %10s %16s    %s", "Number", "Boot", "Start", "Size", "Bytes", "System")}
	for _, p := range t {
		if p.Type == Empty && p.Size == 0 {
			continue
		}
		bootFlag := " "
		if p.IsBootable() {
			bootFlag = "*"
		}
		lines = append(lines, fmt.Sprintf("%6d %4s %10d %10d %16s    %s",
			p.Index, bootFlag, p.StartLBA, p.Size, humanize.IBytes(uint64(p.Size)*uint64(sectorSize)), p.HumanReadablePartitionType()))
	}
	return strings.Join(lines, "\n")
}

// MBRPartition MBR分区表项结构, 16字节.
type MBRPartition struct {
	// Index 表项在分区表中的槽位, 主分区为0-3, 逻辑分区从4开始.
	Index    int              `struc:"skip"`
	Flags    byte             // 0x00, 1, 引导标志.
	StartCHS []byte           `struc:"[3]byte"`       // 0x01, 3.
	Type     MBRPartitionType `struc:"byte"`          // 0x04, 1. 见 https://en.wikipedia.org/wiki/Partition_type.
	EndCHS   []byte           `struc:"[3]byte"`       // 0x05, 3.
	StartLBA uint32           `struc:"uint32,little"` // 0x08, 4, 起始LBA(包含).
	Size     uint32           `struc:"uint32,little"` // 0x0C, 4, 总扇区数.
}

// HumanReadablePartitionType 返回该分区用户可读的分区类型.
func (partition MBRPartition) HumanReadablePartitionType() string {
	v, ok := MBRPartitionTypeDesc[partition.Type]
	if !ok {
		return fmt.Sprintf("unknown (%02x)", partition.Type)
	}
	return v
}

// HasValidFlags 引导标志为0x00或0x80时返回true.
func (partition MBRPartition) HasValidFlags() bool {
	return partition.Flags == MBRPartitionNotBootable || partition.Flags == MBRPartitionBootable
}

// IsEmpty 起始LBA或大小为0时返回true.
func (partition MBRPartition) IsEmpty() bool {
	return partition.StartLBA == 0 || partition.Size == 0
}

// IsBootable 若引导标志为活动分区，则返回true.
func (partition MBRPartition) IsBootable() bool {
	return partition.Flags == MBRPartitionBootable
}

// IsExtend 若为扩展分区, 则返回true.
func (partition MBRPartition) IsExtend() bool {
	return funk.Contains(MBRExtendPartTypes, partition.Type)
}

// EndSector 分区的结束扇区(包含).
func (partition MBRPartition) EndSector() uint64 {
	return uint64(partition.StartLBA) + uint64(partition.Size) - 1
}

// LogicalPartition EBR链中的一个逻辑分区.
type LogicalPartition struct {
	MBRPartition
	EBRLBA      uint64 // 描述该分区的EBR所在LBA.
	AbsoluteLBA uint64 // 绝对起始LBA, 即 EBRLBA + 表项起始LBA.
}

// ScanExtendedChain 从扩展分区起始扇区 base 开始沿EBR链收集逻辑分区.
// 链在以下情况结束: 扇区中没有扩展表项, 读取失败, 签名无效, 或超过最大跳数.
// 后三种情况返回已收集的分区及描述原因的错误, 调用方应将其视为正常结束.
func ScanExtendedChain(bio firmware.BlockIO, base uint32) ([]LogicalPartition, error) {
	var out []LogicalPartition
	index := MBRLogicalPartitionBase
	current := uint64(base)
	for hops := 0; current != 0; hops++ {
		if hops >= MBRExtendedChainMaxHops {
			return out, errors.Wrapf(ErrChainTooLong, "stopped at lba %d", current)
		}
		ebr, err := ReadBootRecord(bio, current)
		if err != nil {
			return out, err
		}
		if !ebr.HasSignature() {
			return out, errors.Wrapf(ErrNoBootSignature, "ebr at lba %d", current)
		}
		var next uint64
		for _, p := range ebr.Partitions {
			if !p.HasValidFlags() || p.IsEmpty() {
				break
			}
			if p.IsExtend() {
				next = uint64(base) + uint64(p.StartLBA)
				break
			}
			p.Index = index
			index++
			out = append(out, LogicalPartition{
				MBRPartition: p,
				EBRLBA:       current,
				AbsoluteLBA:  current + uint64(p.StartLBA),
			})
		}
		current = next
	}
	return out, nil
}
