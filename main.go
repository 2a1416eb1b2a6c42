package main

import (
	"github.com/tornado1014/openclaw-kakao/cmd"
)

// 主程序入口
func main() {
	cmd.Execute()
}
