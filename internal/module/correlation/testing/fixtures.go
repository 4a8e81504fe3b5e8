package testing

import "github.com/resellkit/correlate/pkg/models"

// TestProduct はテスト用のProductDescriptorを作成します
func TestProduct(asin, title, brand string, categoryID int64) models.ProductDescriptor {
	p := models.ProductDescriptor{
		ASIN:      asin,
		Title:     title,
		ImageURL:  "https://img.example.com/" + asin + ".jpg",
		SourceURL: "https://www.amazon.com/dp/" + asin,
	}
	if brand != "" {
		p.Brand = &brand
	}
	if categoryID != 0 {
		p.CategoryID = &categoryID
	}
	return p
}

// TestCandidate は由来情報付きのテスト用Candidateを作成します
func TestCandidate(asin, title, brand string, origin models.Origin) models.Candidate {
	return models.Candidate{
		ProductDescriptor: TestProduct(asin, title, brand, 0),
		Origin:            origin,
	}
}
