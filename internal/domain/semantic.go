package domain

import "context"

// CodeCheck is one unique (HS code, product description) pair submitted to the
// classification service. Pairs are deduplicated before submission so each
// combination costs at most one model call per run.
type CodeCheck struct {
	HSCode      string `json:"hs_code"`
	Description string `json:"description"`
}

// CodeVerdict is the classification service's judgment on one pair.
type CodeVerdict struct {
	HSCode            string `json:"hs_code"`
	Description       string `json:"description"`
	IsCorrect         bool   `json:"is_correct"`
	Reason            string `json:"reason"`
	SuggestedCategory string `json:"suggested_category"`
}

// ClassificationService judges whether HS tariff codes plausibly match their
// product descriptions. Implementations must treat a malformed response as a
// failed call: no partial trust of a non-conforming payload. A failed call
// returns an error; callers degrade by omitting semantic anomalies.
type ClassificationService interface {
	ClassifyCodes(ctx context.Context, checks []CodeCheck) ([]CodeVerdict, error)
}

// SummarizationService turns a run's summary statistics into a free-text
// narrative for the compliance analyst. The response is not validated beyond
// being non-empty; failures are non-fatal and yield an empty string.
type SummarizationService interface {
	Summarize(ctx context.Context, summary Summary, top []AnomalyRecord) (string, error)
}
