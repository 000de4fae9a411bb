// volscan 以镜像文件或块设备模拟固件, 扫描并打印可引导卷.
package main

import "os"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
