package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 30 * time.Second

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 16 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrUnparsableVerdict は判定結果をyes/noとして解釈できない場合のエラー
	ErrUnparsableVerdict = errors.New("judge returned a verdict that is neither yes nor no")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// defaultInstruction は既定の判定基準
// オーナーごとの上書き指示が指定された場合はこの文面を置き換えます
const defaultInstruction = `Approve if the candidate is the same brand and is a variant, bundle, or accessory of the same product line. Reject if it is a different brand or an unrelated category.`

// promptTemplate は判定プロンプトの骨格
const promptTemplate = `You compare two product listings and decide whether they should be linked as related products.

%s

Seed product:
%s

Candidate product:
%s

Answer with exactly one word: yes or no.`

// Judge はOpenAI APIを使った類似判定クライアント
type Judge struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewJudge は新しいJudgeを作成します
func NewJudge(apiKey, model string) (*Judge, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Judge{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout はAPIコールのタイムアウトを設定します
func (j *Judge) SetTimeout(timeout time.Duration) {
	j.timeout = timeout
}

// Judge はシードと候補の説明文を比較し、関連付けを承認すべきかを返します
func (j *Judge) Judge(ctx context.Context, seedText, candidateText, instructionOverride string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	instruction := defaultInstruction
	if strings.TrimSpace(instructionOverride) != "" {
		instruction = instructionOverride
	}
	prompt := fmt.Sprintf(promptTemplate, instruction, seedText, candidateText)

	content, err := j.completeWithRetry(ctx, prompt)
	if err != nil {
		return false, err
	}

	return parseVerdict(content)
}

// completeWithRetry はレート制限時にExponential Backoffでリトライします
func (j *Judge) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		completion, err := j.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(j.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0),
			MaxTokens:   openai.Int(4),
		})
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return "", fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}

		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// parseVerdict はモデルの応答をyes/noとして解釈します
func parseVerdict(content string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(content))
	normalized = strings.TrimRight(normalized, ".!")

	switch normalized {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnparsableVerdict, content)
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ domain.SimilarityJudge = (*Judge)(nil)
