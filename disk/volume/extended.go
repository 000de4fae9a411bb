package volume

import (
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/pkg/errors"
)

// scanExtendedPartition 沿整盘卷的扩展分区链合成逻辑分区卷并追加到集合末尾.
// 链读取失败或签名无效只结束本条链.
func (r *Registry) scanExtendedPartition(whole *Volume, entry table.MBRPartition) {
	lps, err := table.ScanExtendedChain(whole.BlockIO, entry.StartLBA)
	if err != nil {
		if errors.Is(err, table.ErrChainTooLong) {
			r.logger.Warnf("Extended partition chain at lba %d: %v", entry.StartLBA, err)
		} else {
			r.logger.Debugf("Extended partition chain at lba %d ended: %v", entry.StartLBA, err)
		}
	}
	for _, lp := range lps {
		v := &Volume{
			DiskKind:            whole.DiskKind,
			IsMBRPartition:      true,
			MBRPartitionIndex:   lp.Index,
			VolName:             partitionName(lp.Index),
			BlockIO:             whole.BlockIO,
			BlockIOOffset:       lp.AbsoluteLBA,
			WholeDiskBlockIO:    whole.BlockIO,
			WholeDiskDevicePath: whole.DevicePath,
			VolNumber:           Unnumbered,
			FSType:              fossick.Unknown,
		}
		if !r.scanBootcode(v) {
			v.HasBootCode = false
		}
		// 逻辑分区的样本中可能也有合理的分区表, 只有整盘卷保留它.
		v.MBRPartitionTable = nil
		r.setVolumeBadgeIcon(v)
		r.logger.Debugf("Found logical partition %d at lba %d (%s)", lp.Index, lp.AbsoluteLBA, v.FSType)
		r.volumes = append(r.volumes, v)
	}
}
