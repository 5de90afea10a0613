package services

import (
	"github.com/shroomify/server/internal/models"
)

// Tier is the severity bucket a classification renders under.
type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
	TierInfo    Tier = "info"
)

// Outcome is the raw inference verdict handed to the presenter. Code is nil
// when the response carried no classification at all.
type Outcome struct {
	Code       *int
	Confidence *float64
	Sentinel   bool
}

// Presentation is the full display decision for one outcome.
type Presentation struct {
	Status          string   `json:"status"`
	Tier            Tier     `json:"tier"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
	ShowConfidence  bool     `json:"showConfidence"`
	OfferPersist    bool     `json:"offerPersist"`
	PromptSignIn    bool     `json:"promptSignIn"`
}

var healthyRecommendations = []string{
	"No contamination visible. Keep the bag in its current conditions.",
	"Re-scan in a few days to catch early colonization changes.",
}

var greenMoldRecommendations = []string{
	"Isolate the bag from the rest of the grow immediately.",
	"Trichoderma spreads by spore contact; do not open the bag indoors.",
	"Check neighboring bags and improve air filtration before restarting.",
}

var blackMoldRecommendations = []string{
	"Seal and discard the bag; black mold is a health hazard.",
	"Wear a respirator when handling the contaminated substrate.",
	"Sanitize the fruiting area and tools before introducing new bags.",
}

var sentinelRecommendations = []string{
	"No fruiting bag was detected in the frame.",
	"Fill the frame with the bag under even lighting and scan again.",
	"Avoid reflective wrapping or heavy shadows across the substrate.",
}

// Present maps an inference outcome and the session state to a display
// decision. It is total over its inputs and never returns an empty tier.
func Present(outcome Outcome, authenticated bool) Presentation {
	if outcome.Sentinel {
		// Sentinel guidance is always shown in full, and there is nothing
		// meaningful to persist.
		return Presentation{
			Status:          "No fruiting bag detected",
			Tier:            TierInfo,
			Message:         "The scanner could not find a fruiting bag in this image.",
			Recommendations: sentinelRecommendations,
		}
	}

	var p Presentation
	switch {
	case outcome.Code == nil:
		p = Presentation{
			Status:  "Unknown result",
			Tier:    TierInfo,
			Message: "The scanner returned a result this app does not recognize.",
		}
	case *outcome.Code == models.ClassHealthy:
		p = Presentation{
			Status:          "Healthy",
			Tier:            TierSuccess,
			Message:         "Your fruiting bag looks healthy.",
			Recommendations: healthyRecommendations,
		}
	case *outcome.Code == models.ClassGreenMold:
		p = Presentation{
			Status:          "Green mold detected",
			Tier:            TierWarning,
			Message:         "Signs of green mold (Trichoderma) contamination were found.",
			Recommendations: greenMoldRecommendations,
		}
	case *outcome.Code == models.ClassBlackMold:
		p = Presentation{
			Status:          "Black mold detected",
			Tier:            TierDanger,
			Message:         "Signs of black mold contamination were found.",
			Recommendations: blackMoldRecommendations,
		}
	default:
		p = Presentation{
			Status:  "Unknown result",
			Tier:    TierInfo,
			Message: "The scanner returned a result this app does not recognize.",
		}
	}

	knownClass := outcome.Code != nil && *outcome.Code >= models.ClassHealthy && *outcome.Code <= models.ClassBlackMold

	if !authenticated {
		// Anonymous sessions get the label and tier only.
		p.Message = ""
		p.Recommendations = nil
		p.PromptSignIn = true
		return p
	}

	if outcome.Confidence != nil {
		p.Confidence = *outcome.Confidence
		p.ShowConfidence = true
	}
	p.OfferPersist = knownClass

	return p
}
