package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// pollInterval は--wait指定時のステータス確認間隔
const pollInterval = 2 * time.Second

// JobSubmitAction は関連付けジョブを投入するコマンドのアクション
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job, err := appCtx.Orchestrator.Submit(ctx,
		cmd.String("asin"),
		cmd.String("owner"),
		cmd.String("instruction"),
	)
	if err != nil {
		return err
	}

	fmt.Printf("job accepted: %s\n", job.ID)

	if !cmd.Bool("wait") {
		return nil
	}

	// 終了状態になるまでポーリングする
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}

		current, err := appCtx.Orchestrator.GetStatus(ctx, job.ID)
		if err != nil {
			return err
		}
		fmt.Printf("status=%s processed=%d/%d approved=%d rejected=%d\n",
			current.Status, current.ProcessedCount, current.TotalCount,
			current.ApprovedCount, current.RejectedCount)

		if current.Status.Terminal() {
			if current.ErrorMessage != "" {
				fmt.Printf("error: %s\n", current.ErrorMessage)
			}
			return nil
		}
	}
}

// JobStatusAction はジョブの現在状態を表示するコマンドのアクション
func JobStatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobID, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	job, err := appCtx.Orchestrator.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}

	return printJSON(job)
}

// JobCheckAction はシードの既存関連付けを表示するコマンドのアクション
func JobCheckAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	records, err := appCtx.Orchestrator.CheckExisting(ctx, cmd.String("asin"), cmd.String("owner"))
	if err != nil {
		return err
	}

	fmt.Printf("found %d correlations\n", len(records))
	return printJSON(records)
}

// printJSON は結果を整形してstdoutへ出力します
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
