package models_test

import (
	"testing"

	"github.com/resellkit/correlate/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestValidASIN(t *testing.T) {
	tests := []struct {
		name string
		asin string
		want bool
	}{
		{"valid product code", "B01KJEOCDW", true},
		{"valid numeric ISBN-style code", "0134190440", true},
		{"too short", "short", false},
		{"too long", "B01KJEOCDW1", false},
		{"lowercase rejected", "b01kjeocdw", false},
		{"empty", "", false},
		{"whitespace", "B01KJEOCD ", false},
		{"symbol", "B01KJEOCD-", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ValidASIN(tt.asin))
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, models.JobStatusPending.Terminal())
	assert.False(t, models.JobStatusProcessing.Terminal())
	assert.True(t, models.JobStatusComplete.Terminal())
	assert.True(t, models.JobStatusError.Terminal())
}
