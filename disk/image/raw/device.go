package raw

import (
	"io"

	"github.com/kisun-bit/bootvol/disk/devicepath"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/pkg/errors"
)

// blockDevice 镜像中的一段连续扇区, 整盘设备的 offset 为0.
type blockDevice struct {
	handle firmware.Handle
	path   devicepath.Path
	media  firmware.Media
	r      io.ReaderAt
	offset int64 // 相对镜像起始的字节偏移.
	name   string
}

func (d *blockDevice) Media() firmware.Media {
	return d.media
}

func (d *blockDevice) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if mediaID != d.media.MediaID {
		return firmware.ErrMediaChanged
	}
	bs := uint64(d.media.BlockSize)
	if len(buf)%int(bs) != 0 {
		return firmware.ErrBadBufferSize
	}
	if lba+uint64(len(buf))/bs > d.media.LastBlock+1 {
		return errors.Wrapf(firmware.ErrDeviceError, "read beyond end of %s: lba %d", d.name, lba)
	}
	n, err := d.r.ReadAt(buf, d.offset+int64(lba*bs))
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(firmware.ErrDeviceError, "read %s at lba %d: %v", d.name, lba, err)
}

// section 以字节为单位访问设备内容.
func (d *blockDevice) section() *io.SectionReader {
	return io.NewSectionReader(d.r, d.offset, int64(d.media.Size()))
}

func (d *blockDevice) isWholeDisk() bool {
	return !d.media.LogicalPartition
}
