// roombook は会議室予約ポータルのAPIサーバー・ワーカー・管理コマンドを提供する。
//
//	roombook [serve|worker|migrate|seed|healthcheck]
package main

import (
	"fmt"
	"os"

	// distrolessイメージにはタイムゾーンDBがないため埋め込む
	_ "time/tzdata"

	"github.com/hitoshi/roombook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
