package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/image/raw"
	"github.com/kisun-bit/bootvol/sys/ioctl"
	"github.com/kisun-bit/bootvol/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

func NewSniffCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "sniff <image>",
		Short: "Detect the filesystem at the start of an image or partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sniff(cmd, util.ExpandEnv(args[0]))
		},
	}
	f := c.Flags()
	f.Bool("json", false, "Print the result as JSON")
	f.Uint32("block-size", 0, "Override the sector size reported by the device")
	f.Bool("partition", false, "Treat the image as a partition rather than a whole disk")
	root.AddCommand(c)
	return c
}

func (a *app) sniff(cmd *cobra.Command, path string) error {
	info, err := ioctl.QueryDeviceInfo(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	dev := fossick.StaticDevice{SectorSize: info.SectorSize, Root: raw.ProbeFAT(f)}
	if bs, _ := cmd.Flags().GetUint32("block-size"); bs != 0 {
		dev.SectorSize = bs
	}
	dev.Logical, _ = cmd.Flags().GetBool("partition")

	d, err := fossick.GetFilesystemTypeByStream(f, dev)
	if err != nil {
		return err
	}
	a.logger.Debugf("Sniffed %s: block size %d, root opens %v", path, dev.SectorSize, dev.Root)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		doc := "{}"
		for _, kv := range []struct {
			k string
			v interface{}
		}{
			{"path", path},
			{"type", d.Type.String()},
			{"type_name", d.Type.TypeName()},
			{"size", info.Size},
			{"block_size", dev.SectorSize},
		} {
			if doc, err = sjson.Set(doc, kv.k, kv.v); err != nil {
				return err
			}
		}
		if !d.UUID.IsZero() {
			if doc, err = sjson.Set(doc, "uuid", d.UUID.String()); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintln(out, doc)
		return err
	}
	line := fmt.Sprintf("%s: %s (%s)", path, d.Type, humanize.IBytes(info.Size))
	if !d.UUID.IsZero() {
		line += " uuid=" + d.UUID.String()
	}
	_, err = fmt.Fprintln(out, line)
	return err
}
