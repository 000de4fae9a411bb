package firmware

import (
	"io"

	"github.com/pkg/errors"
)

// BlockReader 将块设备适配为 io.ReaderAt, 读取按块对齐后再截取.
type BlockReader struct {
	bio BlockIO
}

func NewBlockReader(bio BlockIO) *BlockReader {
	return &BlockReader{bio: bio}
}

// Size 设备字节总数.
func (r *BlockReader) Size() int64 {
	return int64(r.bio.Media().Size())
}

func (r *BlockReader) ReadAt(p []byte, off int64) (n int, err error) {
	media := r.bio.Media()
	if media.BlockSize == 0 {
		return 0, errors.Wrap(ErrDeviceError, "zero block size")
	}
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	size := int64(media.Size())
	if off >= size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if off+want > size {
		want = size - off
	}
	bs := int64(media.BlockSize)
	first := off / bs
	last := (off + want + bs - 1) / bs
	buf := make([]byte, (last-first)*bs)
	if err = r.bio.ReadBlocks(media.MediaID, uint64(first), buf); err != nil {
		return 0, errors.Wrapf(err, "read blocks at lba %d", first)
	}
	n = copy(p, buf[off-first*bs:off-first*bs+want])
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}
