package fossick

import (
	"bytes"
	"encoding/binary"
)

// Sample 从卷的扇区0开始读取的原始字节.
// 所有读取都先检查长度, 越界时返回 ok=false 而不是访问越界.
type Sample []byte

func (s Sample) Len() int {
	return len(s)
}

// Has 若样本完整覆盖 [off, off+n), 则返回true.
func (s Sample) Has(off, n int) bool {
	return off >= 0 && n >= 0 && off+n <= len(s)
}

func (s Sample) Bytes(off, n int) ([]byte, bool) {
	if !s.Has(off, n) {
		return nil, false
	}
	return s[off : off+n], true
}

// U16 小端序.
func (s Sample) U16(off int) (uint16, bool) {
	b, ok := s.Bytes(off, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

// U32 小端序.
func (s Sample) U32(off int) (uint32, bool) {
	b, ok := s.Bytes(off, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// HasAt 若 off 处的字节与 lit 完全相同, 则返回true.
func (s Sample) HasAt(off int, lit string) bool {
	b, ok := s.Bytes(off, len(lit))
	return ok && string(b) == lit
}

// Contains 在样本前 window 字节中查找 lit, window 超出样本长度时按样本长度截断.
func (s Sample) Contains(window int, lit string) bool {
	if window > len(s) {
		window = len(s)
	}
	if window <= 0 {
		return false
	}
	return bytes.Contains(s[:window], []byte(lit))
}

// Sum 返回 [off, off+n) 内所有字节之和.
func (s Sample) Sum(off, n int) (uint64, bool) {
	b, ok := s.Bytes(off, n)
	if !ok {
		return 0, false
	}
	var sum uint64
	for _, c := range b {
		sum += uint64(c)
	}
	return sum, true
}
