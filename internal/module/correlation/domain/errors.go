package domain

import "errors"

var (
	// ErrInvalidASIN はシード識別子の形式が不正な場合のエラー
	ErrInvalidASIN = errors.New("invalid ASIN: expected 10-character alphanumeric code")

	// ErrSeedNotFound はシードがカタログに存在しない場合のエラー
	ErrSeedNotFound = errors.New("seed product not found in catalog")

	// ErrJobNotFound は指定されたジョブIDが存在しない場合のエラー
	ErrJobNotFound = errors.New("correlation job not found")

	// ErrJobAlreadyActive は同一(owner, seed)の未終了ジョブが存在する場合のエラー
	ErrJobAlreadyActive = errors.New("an active correlation job already exists for this seed")
)
