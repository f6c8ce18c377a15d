// dailybrief 执行一次聚合并把 Digest 以 JSON 输出，适合由外部调度器触发
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
