package bootcode

import (
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
)

const (
	// BootSectorWindow 大多数特征只在首个扇区中查找.
	BootSectorWindow = 512
	// SectorWindow 部分引导程序的特征字符串位于首个4KiB内.
	SectorWindow = 4096
)

type matcher func(s fossick.Sample) bool

// Rule 一条引导代码识别规则.
type Rule struct {
	Name   string
	Icon   string // 逗号分隔的图标名, 越靠前越优先.
	OSName string
	match  matcher
}

func at(off int, lit string) matcher {
	return func(s fossick.Sample) bool { return s.HasAt(off, lit) }
}

func within(window int, lit string) matcher {
	return func(s fossick.Sample) bool { return s.Contains(window, lit) }
}

func u32At(off int, v uint32) matcher {
	return func(s fossick.Sample) bool {
		got, ok := s.U32(off)
		return ok && got == v
	}
}

func signed(s fossick.Sample) bool {
	sig, ok := s.U16(fossick.BootSignatureOffset)
	return ok && sig == fossick.BootSignature
}

func anyOf(ms ...matcher) matcher {
	return func(s fossick.Sample) bool {
		for _, m := range ms {
			if m(s) {
				return true
			}
		}
		return false
	}
}

func allOf(ms ...matcher) matcher {
	return func(s fossick.Sample) bool {
		for _, m := range ms {
			if !m(s) {
				return false
			}
		}
		return true
	}
}

// Rules 按顺序匹配, 首个命中的规则决定系统名称与图标.
var Rules = []Rule{
	{
		Name: "linux", Icon: "linux", OSName: "Linux (Legacy)",
		match: anyOf(at(2, "LILO"), at(6, "LILO"), at(3, "SYSLINUX"), within(SectorWindow, "ISOLINUX")),
	},
	{
		Name: "grub", Icon: "grub,linux", OSName: "Linux (Legacy)",
		match: within(BootSectorWindow, "Geom\x00Hard Disk\x00Read\x00 Error"),
	},
	{
		Name: "freebsd-btx", Icon: "freebsd", OSName: "FreeBSD (Legacy)",
		match: anyOf(allOf(u32At(502, 0), u32At(506, 50000), signed), within(SectorWindow, "Starting the BTX loader")),
	},
	{
		Name: "freebsd-boot0", Icon: "freebsd", OSName: "FreeBSD (Legacy)",
		match: allOf(signed, within(SectorWindow, "Boot loader too large"), within(SectorWindow, "I/O error loading boot loader")),
	},
	{
		Name: "openbsd", Icon: "openbsd", OSName: "OpenBSD (Legacy)",
		match: anyOf(within(BootSectorWindow, "!Loading"), within(SectorWindow, "/cdboot\x00/CDBOOT\x00")),
	},
	{
		Name: "netbsd", Icon: "netbsd", OSName: "NetBSD (Legacy)",
		match: anyOf(within(BootSectorWindow, "Not a bootxx image"), u32At(1028, 0x7886b6d1)),
	},
	{
		Name: "ntldr", Icon: "win", OSName: "Windows (Legacy)",
		match: within(SectorWindow, "NTLDR"),
	},
	{
		Name: "bootmgr", Icon: "win8,win", OSName: "Windows (Legacy)",
		match: within(SectorWindow, "BOOTMGR"),
	},
	{
		Name: "freedos", Icon: "freedos", OSName: "FreeDOS (Legacy)",
		match: anyOf(within(BootSectorWindow, "CPUBOOT SYS"), within(BootSectorWindow, "KERNEL  SYS")),
	},
	{
		Name: "ecomstation", Icon: "ecomstation", OSName: "eComStation (Legacy)",
		match: anyOf(within(BootSectorWindow, "OS2LDR"), within(BootSectorWindow, "OS2BOOT")),
	},
	{
		Name: "beos", Icon: "beos", OSName: "BeOS (Legacy)",
		match: within(BootSectorWindow, "Be Boot Loader"),
	},
	{
		Name: "zeta", Icon: "zeta,beos", OSName: "ZETA (Legacy)",
		match: within(BootSectorWindow, "yT Boot Loader"),
	},
	{
		Name: "haiku", Icon: "haiku,beos", OSName: "Haiku (Legacy)",
		match: anyOf(within(BootSectorWindow, "\x04beos\x06system\x05zbeos"), within(BootSectorWindow, "\x06system\x0chaiku_loader")),
	},
}

// DummyBootSectorMarkers 格式化工具写入的占位引导扇区中的提示语.
// newfs_msdos, mkdosfs, Windows format 依次对应.
var DummyBootSectorMarkers = []string{
	"Non-system disk",
	"This is not a bootable disk",
	"Press any key to restart",
}
