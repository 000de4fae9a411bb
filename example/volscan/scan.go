package main

import (
	"fmt"

	"github.com/kisun-bit/bootvol/disk/image/raw"
	"github.com/kisun-bit/bootvol/disk/table"
	"github.com/kisun-bit/bootvol/disk/volume"
	"github.com/kisun-bit/bootvol/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewScanCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "scan [images...]",
		Short: "Scan images and print the discovered volumes",
		Long: "Scan images and print the discovered volumes.\n\n" +
			"Images given as arguments replace the images listed in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd, args)
		},
	}
	f := c.Flags()
	f.Bool("json", false, "Print volumes as JSON")
	f.StringSlice("removable", nil, "Images exposed as removable USB disks")
	f.String("self", "", "Image holding the running loader")
	_ = a.v.BindPFlag("removable", f.Lookup("removable"))
	_ = a.v.BindPFlag("self_image", f.Lookup("self"))
	root.AddCommand(c)
	return c
}

func (a *app) scan(cmd *cobra.Command, args []string) error {
	images := expandPaths(args)
	if len(images) == 0 {
		images = expandPaths(a.v.GetStringSlice("images"))
	}
	if len(images) == 0 {
		return errors.New("no images to scan")
	}
	cfg, err := a.volumeConfig()
	if err != nil {
		return err
	}

	fw, err := raw.Open(images, raw.Options{
		Removable: expandPaths(a.v.GetStringSlice("removable")),
		SelfImage: util.ExpandEnv(a.v.GetString("self_image")),
		Logger:    a.logger,
	})
	if err != nil {
		return errors.Wrap(err, "open images")
	}
	defer func() {
		if e := fw.Close(); e != nil {
			a.logger.Warnf("Close images: %v", e)
		}
	}()

	reg := volume.NewRegistry(fw, table.NewPartitionCache(), cfg, a.logger)
	reg.SetIconLoader(volume.NewFileIconLoader())
	if err = reg.Rescan(); err != nil {
		return err
	}
	reg.SetVolumeIcons()
	defer reg.Teardown()

	a.logger.Infof("Found %d volume(s) on %d image(s)", len(reg.Volumes()), len(images))
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		doc, err := reg.JSONFormat()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, doc)
		return err
	}
	_, err = fmt.Fprintln(out, reg.DebugFormat())
	return err
}
