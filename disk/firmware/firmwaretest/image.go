package firmwaretest

import (
	"encoding/binary"
	"hash/crc32"
	"unicode/utf16"
)

// PutMBREntry 在引导扇区 sector 的槽位 slot 写入一个分区表项.
func PutMBREntry(sector []byte, slot int, flags, typ byte, start, size uint32) {
	e := sector[446+16*slot : 446+16*(slot+1)]
	e[0] = flags
	e[4] = typ
	binary.LittleEndian.PutUint32(e[8:], start)
	binary.LittleEndian.PutUint32(e[12:], size)
}

// PutBootSignature 在扇区偏移510处写入0xAA55.
func PutBootSignature(sector []byte) {
	binary.LittleEndian.PutUint16(sector[510:], 0xaa55)
}

// FillBootSector 写入字节和较大的内容, 用于通过扇区比对的校验和阈值.
func FillBootSector(sector []byte, seed byte) {
	for i := 0; i < 440; i++ {
		sector[i] = seed + byte(i%7) + 1
	}
	PutBootSignature(sector)
}

// GPTPartition 用于构造测试GPT的分区描述.
type GPTPartition struct {
	Type       [16]byte
	GUID       [16]byte
	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
	Name       string
}

const (
	gptEntryCount = 128
	gptEntrySize  = 128
	gptHeaderSize = 92
)

// WriteGPT 在 disk 上写入保护性MBR, 主GPT和备份GPT.
func WriteGPT(disk []byte, blockSize int, diskGUID [16]byte, parts []GPTPartition) {
	lastLBA := uint64(len(disk)/blockSize) - 1
	entryBlocks := uint64(gptEntryCount * gptEntrySize / blockSize)

	pmbr := disk[:512]
	PutMBREntry(pmbr, 0, 0, 0xee, 1, uint32(lastLBA))
	PutBootSignature(pmbr)

	entries := make([]byte, gptEntryCount*gptEntrySize)
	for i, p := range parts {
		e := entries[i*gptEntrySize:]
		copy(e[0:16], p.Type[:])
		copy(e[16:32], p.GUID[:])
		binary.LittleEndian.PutUint64(e[32:], p.FirstLBA)
		binary.LittleEndian.PutUint64(e[40:], p.LastLBA)
		binary.LittleEndian.PutUint64(e[48:], p.Attributes)
		for j, c := range utf16.Encode([]rune(p.Name)) {
			if j >= 36 {
				break
			}
			binary.LittleEndian.PutUint16(e[56+2*j:], c)
		}
	}
	entriesCRC := crc32.ChecksumIEEE(entries)

	writeHeader := func(my, alt, entryLBA uint64) {
		h := make([]byte, gptHeaderSize)
		copy(h, "EFI PART")
		binary.LittleEndian.PutUint32(h[8:], 0x10000)
		binary.LittleEndian.PutUint32(h[12:], gptHeaderSize)
		binary.LittleEndian.PutUint64(h[24:], my)
		binary.LittleEndian.PutUint64(h[32:], alt)
		binary.LittleEndian.PutUint64(h[40:], 2+entryBlocks)
		binary.LittleEndian.PutUint64(h[48:], lastLBA-1-entryBlocks)
		copy(h[56:72], diskGUID[:])
		binary.LittleEndian.PutUint64(h[72:], entryLBA)
		binary.LittleEndian.PutUint32(h[80:], gptEntryCount)
		binary.LittleEndian.PutUint32(h[84:], gptEntrySize)
		binary.LittleEndian.PutUint32(h[88:], entriesCRC)
		binary.LittleEndian.PutUint32(h[16:], crc32.ChecksumIEEE(h))
		copy(disk[int(my)*blockSize:], h)
		copy(disk[int(entryLBA)*blockSize:], entries)
	}
	writeHeader(1, lastLBA, 2)
	writeHeader(lastLBA, 1, lastLBA-entryBlocks)
}
