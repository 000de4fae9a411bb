// Package bootcode 识别卷首扇区中的传统BIOS引导代码.
package bootcode

import (
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/table"
)

const exFATMarker = "EXFAT"

// Result 一次引导代码识别的结果.
type Result struct {
	// Bootable 扇区满足引导签名的基本要求.
	Bootable    bool
	HasBootCode bool
	Rule        string
	OSIconName  string
	OSName      string
	// MBRTable 仅当扇区中的分区表合理时非空.
	MBRTable *table.MBRTable
}

// Classify 对样本执行引导代码识别.
// 分两步: 先按 Rules 顺序确定系统, 再由占位扇区提示语无条件清除引导代码标志.
func Classify(s fossick.Sample) Result {
	var r Result
	if b, ok := s.Bytes(0, 1); ok && b[0] != 0 && signed(s) && !s.Contains(BootSectorWindow, exFATMarker) {
		r.Bootable = true
		r.HasBootCode = true
	}
	for _, rule := range Rules {
		if rule.match(s) {
			r.HasBootCode = true
			r.Rule = rule.Name
			r.OSIconName = rule.Icon
			r.OSName = rule.OSName
			break
		}
	}
	for _, marker := range DummyBootSectorMarkers {
		if s.Contains(BootSectorWindow, marker) {
			r.HasBootCode = false
		}
	}
	if signed(s) {
		if t, ok := table.ParseMBRTable(s); ok {
			r.MBRTable = t
		}
	}
	return r
}
