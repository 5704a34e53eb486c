// gozactl 运维命令行：查看聚合结果、查询单条记录、手动预热缓存、探测上游
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
