package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/kisun-bit/bootvol/disk/filesystem/fossick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// writeExtImage 写入一个无分区表的ext4镜像.
func writeExtImage(t *testing.T) string {
	t.Helper()
	data := make([]byte, 1<<20)
	binary.LittleEndian.PutUint16(data[fossick.EXTMagicOffset:], fossick.EXTMagic)
	binary.LittleEndian.PutUint32(data[fossick.EXTIncompatOffset:], fossick.EXTIncompatExtents)
	for i := 0; i < fossick.FilesystemUUIDLength; i++ {
		data[fossick.EXTUUIDOffset+i] = 0xa0 + byte(i)
	}
	path := filepath.Join(t.TempDir(), "root.img")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScanJSON(t *testing.T) {
	img := writeExtImage(t)
	out, err := execute(t, "scan", "--json", "--self", img, img)
	require.NoError(t, err)

	doc := gjson.Parse(out)
	assert.Equal(t, int64(1), doc.Get("count").Int())
	assert.Equal(t, int64(0), doc.Get("self").Int())
	assert.Equal(t, "ext4", doc.Get("volumes.0.fs_type").String())
	assert.Equal(t, "a0a1a2a3-a4a5-a6a7-a8a9-aaabacadaeaf", doc.Get("volumes.0.uuid").String())
	assert.Equal(t, "internal", doc.Get("volumes.0.disk_kind").String())
	assert.True(t, doc.Get("volumes.0.whole_disk").Bool())
	assert.False(t, doc.Get("volumes.0.readable").Bool())
	assert.Equal(t, int64(-1), doc.Get("volumes.0.number").Int())
}

// 镜像固件只能打开FAT根目录, ext4卷不可读也不编号.
func TestScanDebug(t *testing.T) {
	out, err := execute(t, "scan", writeExtImage(t))
	require.NoError(t, err)
	assert.Contains(t, out, `--: "ext4 volume" [internal, ext4, 1.0 MiB]`)
	assert.NotContains(t, out, "fs0:")
}

func TestScanRemovable(t *testing.T) {
	img := writeExtImage(t)
	out, err := execute(t, "scan", "--json", "--removable", img, img)
	require.NoError(t, err)
	assert.Equal(t, "external", gjson.Get(out, "volumes.0.disk_kind").String())
}

func TestScanConfigFile(t *testing.T) {
	img := writeExtImage(t)
	t.Setenv("BOOTVOL_TEST_DIR", filepath.Dir(img))
	cfg := filepath.Join(t.TempDir(), "volscan.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("images:\n  - ${BOOTVOL_TEST_DIR}/root.img\nhide_badges: true\nlog:\n  level: debug\n"), 0o644))

	out, err := execute(t, "--config", cfg, "scan", "--json")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "count").Int())
	assert.Equal(t, "ext4", gjson.Get(out, "volumes.0.fs_type").String())
}

func TestScanEnvOverride(t *testing.T) {
	// 样本不足以覆盖ext超级块时不再识别为ext4.
	t.Setenv("BOOTVOL_SAMPLE_SIZE", "512")
	out, err := execute(t, "scan", "--json", writeExtImage(t))
	require.NoError(t, err)
	assert.NotEqual(t, "ext4", gjson.Get(out, "volumes.0.fs_type").String())
	assert.False(t, gjson.Get(out, "volumes.0.uuid").Exists())
}

func TestScanErrors(t *testing.T) {
	_, err := execute(t, "scan")
	assert.ErrorContains(t, err, "no images")

	_, err = execute(t, "scan", filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)

	_, err = execute(t, "--legacy-type", "bios", "scan", writeExtImage(t))
	assert.ErrorContains(t, err, "unknown legacy type")

	_, err = execute(t, "--log-level", "loud", "scan", writeExtImage(t))
	assert.Error(t, err)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "scan", writeExtImage(t))
	assert.ErrorContains(t, err, "read config")
}

func TestSniff(t *testing.T) {
	img := writeExtImage(t)
	out, err := execute(t, "sniff", "--json", img)
	require.NoError(t, err)
	assert.Equal(t, "ext4", gjson.Get(out, "type").String())
	assert.Equal(t, "ext4", gjson.Get(out, "type_name").String())
	assert.Equal(t, int64(1<<20), gjson.Get(out, "size").Int())
	assert.Equal(t, int64(512), gjson.Get(out, "block_size").Int())
	assert.Equal(t, "a0a1a2a3-a4a5-a6a7-a8a9-aaabacadaeaf", gjson.Get(out, "uuid").String())

	out, err = execute(t, "sniff", img)
	require.NoError(t, err)
	assert.Contains(t, out, "ext4 (1.0 MiB) uuid=a0a1a2a3")
}

// 只有引导签名的扇区: 整盘为 whole-disk, 分区为 unknown.
func TestSniffBootSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.img")
	data := make([]byte, 1<<17)
	data[510], data[511] = 0x55, 0xaa
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "sniff", "--json", path)
	require.NoError(t, err)
	assert.Equal(t, "whole-disk", gjson.Get(out, "type").String())

	out, err = execute(t, "sniff", "--json", "--partition", path)
	require.NoError(t, err)
	assert.Equal(t, "unknown", gjson.Get(out, "type").String())

	_, err = execute(t, "sniff")
	assert.Error(t, err)
}
