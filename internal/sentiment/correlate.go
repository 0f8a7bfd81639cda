package sentiment

import (
	"fmt"
	"strings"

	"sentiment-api/internal/worker"
)

const maxDetailLines = 20

// Correlate turns a finished invocation into the result for its request.
// Only the first output record counts; later records are ignored.
func Correlate(inv *worker.Invocation) (AnalysisResult, error) {
	switch inv.Status {
	case worker.StatusTimedOut:
		return AnalysisResult{}, newError(KindWorkerTimeout, "inference worker %s", inv.ExitDescription())
	case worker.StatusExitedError, worker.StatusKilled:
		return AnalysisResult{}, newError(KindWorkerCrashed, "%s", crashDetail(inv))
	case worker.StatusRunning:
		return AnalysisResult{}, newError(KindInternalFault, "invocation %s correlated before termination", inv.ID)
	}

	if len(inv.Output) == 0 {
		detail := "inference worker exited cleanly without output"
		if tail := diagnosticsTail(inv.Diagnostics); tail != "" {
			detail += "; stderr: " + tail
		}
		return AnalysisResult{}, newError(KindNoOutput, "%s", detail)
	}

	first := inv.Output[0]
	if first.Err != nil {
		return AnalysisResult{}, newError(KindMalformedOutput, "first message is not a JSON object: %q", truncate(first.Raw, 200))
	}
	label, _ := first.Fields["sentiment"].(string)
	sentiment, ok := ParseSentiment(label)
	if !ok {
		return AnalysisResult{}, newError(KindMalformedOutput, "first message has no recognizable sentiment label (got %v)", first.Fields["sentiment"])
	}
	confidence, ok := first.Fields["confidence"].(float64)
	if !ok {
		return AnalysisResult{}, newError(KindMalformedOutput, "first message has no numeric confidence (got %v)", first.Fields["confidence"])
	}
	if confidence < 0 || confidence > 100 {
		return AnalysisResult{}, newError(KindMalformedOutput, "confidence %v outside [0,100]", confidence)
	}
	return AnalysisResult{Sentiment: sentiment, Confidence: confidence}, nil
}

func crashDetail(inv *worker.Invocation) string {
	parts := []string{"inference worker " + inv.ExitDescription()}
	if len(inv.Output) > 0 && inv.Output[0].Err == nil {
		if msg, ok := inv.Output[0].Fields["error"].(string); ok && msg != "" {
			parts = append(parts, "worker error: "+msg)
		}
	}
	if tail := diagnosticsTail(inv.Diagnostics); tail != "" {
		parts = append(parts, "stderr: "+tail)
	}
	return strings.Join(parts, "; ")
}

func diagnosticsTail(lines []string) string {
	if len(lines) > maxDetailLines {
		lines = lines[len(lines)-maxDetailLines:]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
