package sentiment

import "strings"

// MaxTextLength is the longest accepted input, in characters.
const MaxTextLength = 500

// Sentiment is the classification label.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// ParseSentiment maps a worker label onto a Sentiment, ignoring case and
// surrounding whitespace.
func ParseSentiment(raw string) (Sentiment, bool) {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case Positive, Negative, Neutral:
		return s, true
	default:
		return "", false
	}
}

// AnalysisRequest is the body of POST /analyze.
type AnalysisRequest struct {
	Text *string `json:"text"`
}

// AnalysisResult is the correlated answer of one worker invocation.
type AnalysisResult struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
}

// Analysis is the data section of a successful response.
type Analysis struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Text       string    `json:"text"`
}
