package util

import (
	"os"
	"regexp"
)

var (
	windowsEnvRegex = regexp.MustCompile("%([a-zA-Z_0-9]+)%")
)

// ExpandEnv 展开路径中的环境变量, 同时支持 $VAR, ${VAR} 与Windows风格的 %VAR%.
func ExpandEnv(v string) string {
	v = windowsEnvRegex.ReplaceAllString(v, "$${$1}")
	return os.Expand(v, getenv)
}

func getenv(v string) string {
	switch v {
	case "$":
		return "$"
	}
	return os.Getenv(v)
}
