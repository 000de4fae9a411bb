package volume

import (
	"bytes"

	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/firmware"
	"github.com/kisun-bit/bootvol/disk/table"
)

// minSectorSum 参与比对的引导扇区字节和下限, 避免空白扇区误匹配.
const minSectorSum = 1000

// findWholeDiskVolume 返回块设备为 bio 且偏移为0的首个卷.
func (r *Registry) findWholeDiskVolume(bio firmware.BlockIO) *Volume {
	for _, v := range r.volumes {
		if v.BlockIO == bio && v.BlockIOOffset == 0 {
			return v
		}
	}
	return nil
}

// reconcile 判断分区卷对应整盘MBR中的哪个槽位.
// 大小一致且两处读取的首扇区完全相同时才建立关联, 首个满足条件的槽位胜出.
func (r *Registry) reconcile(v *Volume) {
	if v.BlockIO == nil || v.WholeDiskBlockIO == nil || v.BlockIO == v.WholeDiskBlockIO {
		return
	}
	whole := r.findWholeDiskVolume(v.WholeDiskBlockIO)
	if whole == nil || whole.MBRPartitionTable == nil {
		return
	}
	blocks := v.BlockIO.Media().LastBlock + 1
	for i, p := range whole.MBRPartitionTable {
		if uint64(p.Size) != blocks {
			continue
		}
		own, err := firmware.ReadSectors(v.BlockIO, v.BlockIOOffset, table.MBRDefaultLBASize)
		if err != nil {
			r.logger.Debugf("Read partition boot sector failed: %v", err)
			break
		}
		direct, err := firmware.ReadSectors(v.WholeDiskBlockIO, uint64(p.StartLBA), table.MBRDefaultLBASize)
		if err != nil {
			r.logger.Debugf("Read whole disk sector at lba %d failed: %v", p.StartLBA, err)
			break
		}
		if !bytes.Equal(own, direct) {
			continue
		}
		if sum, _ := fossick.Sample(own).Sum(0, len(own)); sum < minSectorSum {
			continue
		}
		v.IsMBRPartition = true
		v.MBRPartitionIndex = i
		if v.VolName == "" {
			v.VolName = partitionName(i)
		}
		r.logger.Debugf("Volume %q is MBR partition %d", v.VolName, i)
		break
	}
}
