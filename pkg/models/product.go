package models

import "regexp"

// asinPattern はAmazonの標準商品識別子（10桁の英数字）のパターン
var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ValidASIN はASINの形式が正しいかを判定します
func ValidASIN(asin string) bool {
	return asinPattern.MatchString(asin)
}

// ProductDescriptor はカタログから取得した商品情報を表します
// カタログ参照クライアントのレスポンスから構築され、以降は変更されません
type ProductDescriptor struct {
	ASIN       string  `json:"asin"`
	Title      string  `json:"title"`
	Brand      *string `json:"brand,omitempty"`
	ImageURL   string  `json:"imageUrl"`
	SourceURL  string  `json:"sourceUrl"`
	CategoryID *int64  `json:"categoryId,omitempty"`

	// VariationASINs はカタログ項目が宣言する代替形態（サイズ・色違い等）のASIN
	VariationASINs []string `json:"variationAsins,omitempty"`
}

// Origin は候補商品の由来を表します
type Origin string

const (
	// OriginVariation はシードのカタログ項目から直接得られたバリエーション
	OriginVariation Origin = "variation"
	// OriginSimilar は属性検索で見つかった類似候補
	OriginSimilar Origin = "similar"
)

// Candidate は由来情報付きの候補商品を表します
// バリエーションは自動承認、類似候補は類似判定の対象となります
type Candidate struct {
	ProductDescriptor
	Origin Origin `json:"origin"`
}
