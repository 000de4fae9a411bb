package devicepath

import (
	"bytes"
	"encoding/binary"

	efi "github.com/canonical/go-efilib"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const (
	SignatureTypeNone uint8 = 0x00
	SignatureTypeMBR  uint8 = 0x01
	SignatureTypeGUID uint8 = 0x02

	PartitionFormatMBR uint8 = 0x01
	PartitionFormatGPT uint8 = 0x02
)

// HardDrive 介质类硬盘分区节点数据(MEDIA_HARDDRIVE_DP), 共38字节.
type HardDrive struct {
	PartitionNumber uint32   `struc:"uint32,little"` // 1起始.
	PartitionStart  uint64   `struc:"uint64,little"`
	PartitionSize   uint64   `struc:"uint64,little"`
	Signature       [16]byte `struc:"[16]byte"`
	MBRType         uint8    `struc:"uint8"`
	SignatureType   uint8    `struc:"uint8"`
}

// GUID 分区签名为GUID时返回该GUID.
func (hd *HardDrive) GUID() (efi.GUID, bool) {
	if hd.SignatureType != SignatureTypeGUID {
		return efi.GUID{}, false
	}
	return efi.GUID(hd.Signature), true
}

// HardDrive 解析硬盘分区节点.
func (n Node) HardDrive() (*HardDrive, error) {
	if !n.Is(efi.MediaDevicePath, efi.DevicePathNodeMediaHardDriveSubType) {
		return nil, errors.New("not a hard drive node")
	}
	hd := new(HardDrive)
	if err := struc.Unpack(bytes.NewReader(n.Data), hd); err != nil {
		return nil, errors.Wrap(err, "unpack hard drive node")
	}
	return hd, nil
}

func NewHardDriveNode(hd HardDrive) Node {
	var buf bytes.Buffer
	// 仅写入定长字段, 不会失败.
	_ = struc.Pack(&buf, &hd)
	return Node{Type: efi.MediaDevicePath, SubType: efi.DevicePathNodeMediaHardDriveSubType, Data: buf.Bytes()}
}

func NewACPINode(hid, uid uint32) Node {
	d := make([]byte, 8)
	binary.LittleEndian.PutUint32(d, hid)
	binary.LittleEndian.PutUint32(d[4:], uid)
	return Node{Type: efi.ACPIDevicePath, SubType: efi.DevicePathNodeACPISubType, Data: d}
}

// NewPCIRootNode 即 PciRoot(uid).
func NewPCIRootNode(uid uint32) Node {
	return NewACPINode(0x0a0341d0, uid)
}

func NewPCINode(device, function uint8) Node {
	return Node{Type: efi.HardwareDevicePath, SubType: efi.DevicePathNodeHWPCISubType, Data: []byte{function, device}}
}

func NewSATANode(port, multiplier, lun uint16) Node {
	d := make([]byte, 6)
	binary.LittleEndian.PutUint16(d, port)
	binary.LittleEndian.PutUint16(d[2:], multiplier)
	binary.LittleEndian.PutUint16(d[4:], lun)
	return Node{Type: efi.MessagingDevicePath, SubType: efi.DevicePathNodeMsgSATASubType, Data: d}
}

func NewUSBNode(parentPort, iface uint8) Node {
	return Node{Type: efi.MessagingDevicePath, SubType: efi.DevicePathNodeMsgUSBSubType, Data: []byte{parentPort, iface}}
}

func New1394Node(guid uint64) Node {
	d := make([]byte, 12)
	binary.LittleEndian.PutUint64(d[4:], guid)
	return Node{Type: efi.MessagingDevicePath, SubType: Msg1394SubType, Data: d}
}

func NewCDROMNode(bootEntry uint32, start, size uint64) Node {
	d := make([]byte, 20)
	binary.LittleEndian.PutUint32(d, bootEntry)
	binary.LittleEndian.PutUint64(d[4:], start)
	binary.LittleEndian.PutUint64(d[12:], size)
	return Node{Type: efi.MediaDevicePath, SubType: efi.DevicePathNodeMediaCDROMSubType, Data: d}
}

func NewMediaVendorNode(vendor efi.GUID, data []byte) Node {
	d := append(append([]byte(nil), vendor[:]...), data...)
	return Node{Type: efi.MediaDevicePath, SubType: efi.DevicePathNodeMediaVendorSubType, Data: d}
}

func NewFilePathNode(path string) Node {
	return Node{Type: efi.MediaDevicePath, SubType: efi.DevicePathNodeMediaFilePathSubType, Data: encodeUTF16(path)}
}
