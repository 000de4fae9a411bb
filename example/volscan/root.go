package main

import (
	"io"
	"strings"

	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/kisun-bit/bootvol/disk/volume"
	"github.com/kisun-bit/bootvol/util"
	"github.com/kisun-bit/bootvol/util/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "BOOTVOL"

// app 各子命令共享的配置与日志.
type app struct {
	v      *viper.Viper
	logger *zap.SugaredLogger
}

func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	cmd := &cobra.Command{
		Use:          "volscan",
		Short:        "Discover boot volumes on disk images",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (yaml, json or toml)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", logger.FormatConsole, "Log format: console or json")
	pf.String("legacy-type", volume.LegacyMac.String(), "Legacy BIOS mode: mac, uefi or none")
	pf.Int("sample-size", fossick.SampleSize, "Bytes sampled from each volume")
	pf.Bool("hide-badges", false, "Do not assign disk kind badges")

	_ = a.v.BindPFlag("config", pf.Lookup("config"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("legacy_type", pf.Lookup("legacy-type"))
	_ = a.v.BindPFlag("sample_size", pf.Lookup("sample-size"))
	_ = a.v.BindPFlag("hide_badges", pf.Lookup("hide-badges"))

	NewScanCmd(cmd, a)
	NewSniffCmd(cmd, a)
	return cmd
}

// load 合并配置文件, 环境变量与命令行参数, 并初始化日志.
// 优先级: 命令行 > 环境变量 > 配置文件 > 默认值.
func (a *app) load(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(util.ExpandEnv(path))
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	}

	level, err := logger.ParseLevel(a.v.GetString("log.level"))
	if err != nil {
		return err
	}
	a.logger = logger.New(logger.Options{
		Name:    "volscan",
		Level:   level,
		Format:  a.v.GetString("log.format"),
		Writers: []io.Writer{cmd.ErrOrStderr()},
	})
	logger.SetupDefaultLogger(a.logger)
	if path := a.v.ConfigFileUsed(); path != "" {
		a.logger.Debugf("Loaded config %s", path)
	}
	return nil
}

// volumeConfig 由当前配置生成扫描配置.
func (a *app) volumeConfig() (volume.Config, error) {
	cfg := volume.DefaultConfig()
	lt, err := volume.ParseLegacyType(a.v.GetString("legacy_type"))
	if err != nil {
		return cfg, err
	}
	cfg.LegacyType = lt
	if n := a.v.GetInt("sample_size"); n > 0 {
		cfg.SampleSize = n
	} else if n < 0 {
		return cfg, errors.Errorf("invalid sample size %d", n)
	}
	cfg.HideBadges = a.v.GetBool("hide_badges")
	return cfg, nil
}

// expandPaths 展开路径中的环境变量, 去除空项.
func expandPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(util.ExpandEnv(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
