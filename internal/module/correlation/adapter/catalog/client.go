// Package catalog は外部カタログ参照サービス（商品メタデータ・バリエーション・
// 属性検索）へのHTTPクライアントを実装します
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 30 * time.Second

	// MaxIDsPerLookup は一括取得1回あたりのASIN数上限（プロバイダの制約）
	MaxIDsPerLookup = 100
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("catalog API key not set: please set CATALOG_API_KEY environment variable")

	// ErrTooManyIDs は一括取得の上限を超えた場合のエラー
	ErrTooManyIDs = fmt.Errorf("too many IDs for a single lookup (max %d)", MaxIDsPerLookup)
)

// Client はカタログ参照APIのHTTPクライアント
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient は新しいClientを作成します
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// productPayload はプロバイダのレスポンス中の商品表現
type productPayload struct {
	ASIN       string   `json:"asin"`
	Title      string   `json:"title"`
	Brand      string   `json:"brand"`
	ImageURL   string   `json:"image"`
	URL        string   `json:"url"`
	CategoryID *int64   `json:"categoryId"`
	Variations []string `json:"variationAsins"`
}

// LookupByIDs はASINのリストから商品情報を一括取得します
// プロバイダ側で見つからなかったASINは結果から欠落します
func (c *Client) LookupByIDs(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > MaxIDsPerLookup {
		return nil, ErrTooManyIDs
	}

	query := url.Values{}
	query.Set("ids", strings.Join(asins, ","))

	var payload struct {
		Products []productPayload `json:"products"`
	}
	if err := c.get(ctx, "/v1/products", query, &payload); err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}

	descriptors := make([]models.ProductDescriptor, 0, len(payload.Products))
	for _, p := range payload.Products {
		descriptors = append(descriptors, toDescriptor(p))
	}
	return descriptors, nil
}

// SearchByAttributes はブランドとカテゴリで商品を検索し、ASINのリストを返します
func (c *Client) SearchByAttributes(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error) {
	query := url.Values{}
	query.Set("brand", brand)
	query.Set("category", strconv.FormatInt(categoryID, 10))
	query.Set("limit", strconv.Itoa(limit))

	var payload struct {
		ASINs []string `json:"asins"`
	}
	if err := c.get(ctx, "/v1/search", query, &payload); err != nil {
		return nil, fmt.Errorf("attribute search failed: %w", err)
	}

	return payload.ASINs, nil
}

// get はGETリクエストを発行し、JSONレスポンスをoutへデコードします
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// toDescriptor はプロバイダの商品表現をProductDescriptorへ変換します
func toDescriptor(p productPayload) models.ProductDescriptor {
	d := models.ProductDescriptor{
		ASIN:           p.ASIN,
		Title:          p.Title,
		ImageURL:       p.ImageURL,
		SourceURL:      p.URL,
		CategoryID:     p.CategoryID,
		VariationASINs: p.Variations,
	}
	if p.Brand != "" {
		brand := p.Brand
		d.Brand = &brand
	}
	return d
}

// インターフェース実装の確認
var _ domain.CatalogClient = (*Client)(nil)
