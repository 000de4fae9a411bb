package table

import (
	"fmt"
	"io"
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-efilib/mbr"
	"github.com/dustin/go-humanize"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/pkg/errors"
)

var ErrNoGPT = errors.New("no gpt found")

// GPTEntry GPT磁盘的一项分区表项数据.
// 具体见：https://en.wikipedia.org/wiki/GUID_Partition_Table.
type GPTEntry struct {
	Index      int // 分区位置索引, 0起始.
	TypeGUID   efi.GUID
	PartGUID   efi.GUID
	StartLBA   uint64 // 起始LBA(包含).
	EndLBA     uint64 // 结束LBA(包含).
	Attributes uint64
	Name       string
}

// IsEmpty 若是空分区, 则返回True.
func (e *GPTEntry) IsEmpty() bool {
	return e.TypeGUID == BlankEmptyPart
}

func (e *GPTEntry) IsReadOnly() bool {
	return e.Attributes&GPTAttrReadOnly != 0
}

func (e *GPTEntry) NoAutomount() bool {
	return e.Attributes&GPTAttrNoAutomount != 0
}

// IsDiscoverableRoot 若为可自动挂载的根分区, 则返回True.
func (e *GPTEntry) IsDiscoverableRoot() bool {
	return e.TypeGUID == FreedesktopRoot && !e.NoAutomount()
}

func (e *GPTEntry) TypeDesc() string {
	if v, ok := GPTPartitionTypeDesc[e.TypeGUID]; ok {
		return v
	}
	return e.TypeGUID.String()
}

// ReadGPT 从设备读取主GPT, 主表损坏时使用备份表.
// 设备没有有效MBR, 没有保护性分区或只有普通MBR时返回 ErrNoGPT.
func ReadGPT(r io.ReaderAt, totalSize, blockSize int64) ([]*GPTEntry, error) {
	pt, err := efi.ReadPartitionTable(r, totalSize, blockSize, efi.PrimaryPartitionTable, true)
	if errors.Is(err, efi.ErrNoProtectiveMBR) || errors.Is(err, efi.ErrStandardMBRFound) ||
		errors.Is(err, mbr.ErrInvalidSignature) {
		return nil, ErrNoGPT
	}
	if err != nil {
		var eBackup error
		pt, eBackup = efi.ReadPartitionTable(r, totalSize, blockSize, efi.BackupPartitionTable, true)
		if eBackup != nil {
			return nil, errors.Wrapf(err, "read primary gpt (backup: %v)", eBackup)
		}
	}
	entries := make([]*GPTEntry, 0, len(pt.Entries))
	for i, e := range pt.Entries {
		ge := &GPTEntry{
			Index:      i,
			TypeGUID:   e.PartitionTypeGUID,
			PartGUID:   e.UniquePartitionGUID,
			StartLBA:   uint64(e.StartingLBA),
			EndLBA:     uint64(e.EndingLBA),
			Attributes: e.Attributes,
			Name:       e.PartitionName,
		}
		if ge.IsEmpty() {
			continue
		}
		entries = append(entries, ge)
	}
	return entries, nil
}

// PartitionCache 按分区唯一GUID缓存已发现的GPT分区表项.
// 每次重新扫描卷前需调用 ForgetPartitionTables.
type PartitionCache struct {
	entries *orderedmap.OrderedMap[efi.GUID, *GPTEntry]
	tables  int
}

func NewPartitionCache() *PartitionCache {
	return &PartitionCache{entries: orderedmap.NewOrderedMap[efi.GUID, *GPTEntry]()}
}

// AddPartitionTable 读取整盘设备上的GPT并加入缓存. 分区设备直接忽略.
func (c *PartitionCache) AddPartitionTable(bio firmware.BlockIO) error {
	if bio == nil {
		return errors.Wrap(firmware.ErrUnsupported, "no block io")
	}
	media := bio.Media()
	if media.LogicalPartition {
		return nil
	}
	r := firmware.NewBlockReader(bio)
	entries, err := ReadGPT(r, r.Size(), int64(media.BlockSize))
	if err != nil {
		return err
	}
	for _, e := range entries {
		c.entries.Set(e.PartGUID, e)
	}
	c.tables++
	return nil
}

// FindPartWithGUID 按分区唯一GUID查找分区表项.
func (c *PartitionCache) FindPartWithGUID(guid efi.GUID) (*GPTEntry, bool) {
	return c.entries.Get(guid)
}

func (c *PartitionCache) ForgetPartitionTables() {
	c.entries = orderedmap.NewOrderedMap[efi.GUID, *GPTEntry]()
	c.tables = 0
}

// Len 缓存中的分区数.
func (c *PartitionCache) Len() int {
	return c.entries.Len()
}

// DebugFormat 以Debug模式获取显示输出.
//
// 示例:
// ```
// Found 1 GPT(s), 2 partition(s).
//
//	GUID                                     Start        End      Size    Name
//	0F1E0B5A-...                              2048     206847   100 MiB    EFI System Partition
//
// ```
func (c *PartitionCache) DebugFormat(blockSize uint32) string {
	lines := []string{fmt.Sprintf("Found %d GPT(s), %d partition(s).", c.tables, c.entries.Len()), ""}
	lines = append(lines, fmt.Sprintf("%-38s %10s %10s %10s    %s", "GUID", "Start", "End", "Size", "Name"))
	for el := c.entries.Front(); el != nil; el = el.Next() {
		e := el.Value
		size := (e.EndLBA - e.StartLBA + 1) * uint64(blockSize)
		name := e.Name
		if name == "" {
			name = e.TypeDesc()
		}
		lines = append(lines, fmt.Sprintf("%-38s %10d %10d %10s    %s", el.Key, e.StartLBA, e.EndLBA, humanize.IBytes(size), name))
	}
	return strings.Join(lines, "\n")
}
