package devicepath

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	efi "github.com/canonical/go-efilib"
	"github.com/pkg/errors"
)

const (
	nodeHeaderSize = 4

	EndType          efi.DevicePathNodeType    = 0x7f
	EndEntireSubType efi.DevicePathNodeSubType = 0xff
	EndInstSubType   efi.DevicePathNodeSubType = 0x01

	// go-efilib 未定义以下消息类节点子类型.
	MsgFibreChannelSubType efi.DevicePathNodeSubType = 0x03
	Msg1394SubType         efi.DevicePathNodeSubType = 0x04
)

// Node 设备路径中的一个节点, Data 不含 4 字节节点头.
type Node struct {
	Type    efi.DevicePathNodeType
	SubType efi.DevicePathNodeSubType
	Data    []byte
}

func (n Node) Is(t efi.DevicePathNodeType, st efi.DevicePathNodeSubType) bool {
	return n.Type == t && n.SubType == st
}

func (n Node) IsMedia() bool {
	return n.Type == efi.MediaDevicePath
}

func (n Node) IsMessaging() bool {
	return n.Type == efi.MessagingDevicePath
}

func (n Node) bytes() []byte {
	b := make([]byte, nodeHeaderSize+len(n.Data))
	b[0] = uint8(n.Type)
	b[1] = uint8(n.SubType)
	binary.LittleEndian.PutUint16(b[2:], uint16(len(b)))
	copy(b[nodeHeaderSize:], n.Data)
	return b
}

// Path 解析后的设备路径, 不包含结束节点.
type Path []Node

// Parse 解析原始设备路径, 遇到整体结束节点时停止.
// 缺少结束节点的路径视为在数据末尾结束.
func Parse(raw []byte) (Path, error) {
	var p Path
	for off := 0; off < len(raw); {
		if len(raw)-off < nodeHeaderSize {
			return nil, errors.Errorf("truncated node header at offset %d", off)
		}
		t := efi.DevicePathNodeType(raw[off])
		st := efi.DevicePathNodeSubType(raw[off+1])
		l := int(binary.LittleEndian.Uint16(raw[off+2:]))
		if l < nodeHeaderSize || off+l > len(raw) {
			return nil, errors.Errorf("invalid node length %d at offset %d", l, off)
		}
		if t == EndType && st == EndEntireSubType {
			return p, nil
		}
		data := make([]byte, l-nodeHeaderSize)
		copy(data, raw[off+nodeHeaderSize:off+l])
		p = append(p, Node{Type: t, SubType: st, Data: data})
		off += l
	}
	return p, nil
}

// Bytes 序列化设备路径并追加结束节点.
func (p Path) Bytes() []byte {
	var buf bytes.Buffer
	for _, n := range p {
		buf.Write(n.bytes())
	}
	buf.Write(Node{Type: EndType, SubType: EndEntireSubType}.bytes())
	return buf.Bytes()
}

// Truncate 返回前 n 个节点的拷贝.
func (p Path) Truncate(n int) Path {
	if n > len(p) {
		n = len(p)
	}
	out := make(Path, n)
	for i := 0; i < n; i++ {
		out[i] = Node{Type: p[i].Type, SubType: p[i].SubType, Data: append([]byte(nil), p[i].Data...)}
	}
	return out
}

func (p Path) Equal(other Path) bool {
	return bytes.Equal(p.Bytes(), other.Bytes())
}

// HasPrefix 若 prefix 的所有节点与 p 的前部节点一致, 则返回true.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if prefix[i].Type != p[i].Type || prefix[i].SubType != p[i].SubType || !bytes.Equal(prefix[i].Data, p[i].Data) {
			return false
		}
	}
	return true
}

// SplitFilePath 将加载路径拆分为设备部分和文件路径部分.
func (p Path) SplitFilePath() (Path, string) {
	for i, n := range p {
		if !n.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaFilePathSubType) {
			continue
		}
		var parts []string
		for _, fn := range p[i:] {
			if !fn.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaFilePathSubType) {
				break
			}
			parts = append(parts, strings.Trim(decodeUTF16(fn.Data), `\`))
		}
		return p.Truncate(i), `\` + strings.Join(parts, `\`)
	}
	return p, ""
}

// String 使用 go-efilib 的文本表示, 无法解码时退回到原始节点表示.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	dp, err := efi.ReadDevicePath(bytes.NewReader(p.Bytes()))
	if err == nil {
		return dp.String()
	}
	s := make([]string, 0, len(p))
	for _, n := range p {
		s = append(s, fmt.Sprintf("Path(%d,%d,%x)", n.Type, n.SubType, n.Data))
	}
	return `\` + strings.Join(s, `\`)
}

func decodeUTF16(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}

func encodeUTF16(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(u)+2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[2*i:], c)
	}
	return b
}
