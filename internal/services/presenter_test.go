package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestPresentIsTotal(t *testing.T) {
	codes := []*int{intPtr(0), intPtr(1), intPtr(2), nil, intPtr(99), intPtr(-1)}

	for _, code := range codes {
		for _, sentinel := range []bool{false, true} {
			for _, authenticated := range []bool{false, true} {
				p := Present(Outcome{Code: code, Sentinel: sentinel, Confidence: floatPtr(0.5)}, authenticated)
				assert.NotEmpty(t, p.Tier)
				assert.NotEmpty(t, p.Status)
				assert.Contains(t, []Tier{TierSuccess, TierWarning, TierDanger, TierInfo}, p.Tier)
			}
		}
	}
}

func TestPresentTierMapping(t *testing.T) {
	tests := []struct {
		name string
		code *int
		tier Tier
	}{
		{"healthy", intPtr(0), TierSuccess},
		{"green mold", intPtr(1), TierWarning},
		{"black mold", intPtr(2), TierDanger},
		{"missing", nil, TierInfo},
		{"out of range", intPtr(99), TierInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Present(Outcome{Code: tt.code}, true)
			assert.Equal(t, tt.tier, p.Tier)
		})
	}
}

func TestPresentAnonymousHealthyScan(t *testing.T) {
	p := Present(Outcome{Code: intPtr(0), Confidence: floatPtr(0.92)}, false)

	assert.Equal(t, TierSuccess, p.Tier)
	assert.False(t, p.OfferPersist)
	assert.False(t, p.ShowConfidence)
	assert.Empty(t, p.Recommendations)
	assert.True(t, p.PromptSignIn)
}

func TestPresentAuthenticatedContaminated(t *testing.T) {
	p := Present(Outcome{Code: intPtr(2), Confidence: floatPtr(0.77)}, true)

	assert.Equal(t, TierDanger, p.Tier)
	assert.True(t, p.OfferPersist)
	assert.True(t, p.ShowConfidence)
	assert.InDelta(t, 0.77, p.Confidence, 1e-9)
	assert.NotEmpty(t, p.Recommendations)
	assert.False(t, p.PromptSignIn)
}

func TestPresentSentinelIgnoresSessionState(t *testing.T) {
	for _, authenticated := range []bool{false, true} {
		p := Present(Outcome{Sentinel: true}, authenticated)

		assert.Equal(t, TierInfo, p.Tier)
		assert.False(t, p.OfferPersist)
		require.NotEmpty(t, p.Recommendations)
		assert.False(t, p.PromptSignIn)
	}
}

func TestPresentUnknownCodeNeverOffersPersist(t *testing.T) {
	p := Present(Outcome{Code: intPtr(99), Confidence: floatPtr(0.9)}, true)

	assert.Equal(t, TierInfo, p.Tier)
	assert.False(t, p.OfferPersist)
}
