package llm

import (
	"encoding/json"
	"strings"

	"github.com/ZhuYizhou2333/Market-insight-bot/analyzer"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// rawAssessment uses pointers to distinguish absent fields from zero values.
// Every field is required; a response missing any of them is rejected whole.
type rawAssessment struct {
	VolatilityIncreased *bool     `json:"volatility_increased"`
	ActivityIncreased   *bool     `json:"activity_increased"`
	Summary             *string   `json:"summary"`
	HotTopics           *[]string `json:"hot_topics"`
	Confidence          *float64  `json:"confidence"`
}

// stripFences removes a surrounding markdown code fence, tolerating the
// ```json variant models tend to emit despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseAssessment decodes a model response into an Assessment, enforcing the
// full response shape.
func ParseAssessment(response string) (analyzer.Assessment, error) {
	cleaned := stripFences(response)
	if cleaned == "" {
		return analyzer.Assessment{}, errors.WrapInvalid(errors.ErrMalformedResult, "llm", "ParseAssessment", "empty response")
	}

	var raw rawAssessment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return analyzer.Assessment{}, errors.WrapInvalid(err, "llm", "ParseAssessment", "decode response")
	}

	switch {
	case raw.VolatilityIncreased == nil:
		return analyzer.Assessment{}, missingField("volatility_increased")
	case raw.ActivityIncreased == nil:
		return analyzer.Assessment{}, missingField("activity_increased")
	case raw.Summary == nil:
		return analyzer.Assessment{}, missingField("summary")
	case raw.HotTopics == nil:
		return analyzer.Assessment{}, missingField("hot_topics")
	case raw.Confidence == nil:
		return analyzer.Assessment{}, missingField("confidence")
	}

	a := analyzer.Assessment{
		VolatilityIncreased: *raw.VolatilityIncreased,
		ActivityIncreased:   *raw.ActivityIncreased,
		Summary:             *raw.Summary,
		HotTopics:           *raw.HotTopics,
		Confidence:          *raw.Confidence,
	}
	if err := a.Validate(); err != nil {
		return analyzer.Assessment{}, err
	}
	return a, nil
}

func missingField(name string) error {
	return errors.WrapInvalid(errors.ErrMissingField, "llm", "ParseAssessment", name)
}
