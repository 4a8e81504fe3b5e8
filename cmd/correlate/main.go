package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/resellkit/correlate/cmd/correlate/commands"
	"github.com/resellkit/correlate/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（デフォルトロガーとして登録される）
	logger.New(logger.DefaultConfig())

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "correlate",
		Usage: "ASIN関連商品の発見・判定・永続化エンジン",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "HTTP APIサーバを起動",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:  "addr",
						Usage: "待ち受けアドレス（未指定時はHTTP_ADDR）",
					},
				},
				Action: commands.ServeAction,
			},
			{
				Name:  "job",
				Usage: "関連付けジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: "ジョブを投入",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "asin",
								Usage:    "シードASIN",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "オーナーID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "instruction",
								Usage: "類似判定基準の上書き指示（省略可）",
							},
							&cli.BoolFlag{
								Name:  "wait",
								Usage: "ジョブの終了までポーリングして待つ",
							},
						},
						Action: commands.JobSubmitAction,
					},
					{
						Name:  "status",
						Usage: "ジョブの状態を表示",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ジョブID",
								Required: true,
							},
						},
						Action: commands.JobStatusAction,
					},
					{
						Name:  "check",
						Usage: "既存の関連付けを表示（ジョブは起動しない）",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "asin",
								Usage:    "シードASIN",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "オーナーID",
								Required: true,
							},
						},
						Action: commands.JobCheckAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
