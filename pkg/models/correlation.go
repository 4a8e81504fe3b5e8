package models

import "time"

// CorrelationRecord は承認済みのシード・候補間の関連付けを表します
// (owner_id, seed_asin, candidate_asin) の組につき最大1件（upsertで維持）
type CorrelationRecord struct {
	OwnerID           string    `json:"ownerId"`
	SeedASIN          string    `json:"seedAsin"`
	CandidateASIN     string    `json:"candidateAsin"`
	CandidateTitle    string    `json:"candidateTitle"`
	CandidateImageURL string    `json:"candidateImageUrl,omitempty"`
	SeedImageURL      string    `json:"seedImageUrl,omitempty"`
	Origin            Origin    `json:"origin"`
	CandidateURL      string    `json:"candidateUrl,omitempty"`
	SourceTag         string    `json:"sourceTag,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
