// Package workertest provides a fake inference worker for tests. The test
// binary re-executes itself and, instead of running tests, behaves like
// predict.py according to the text it receives.
//
// Behaviours by text:
//
//	sleep                  never answers (until killed)
//	crash                  writes a traceback to stderr and exits 3
//	fail                   prints {"error":...} and exits 1, like predict.py on failure
//	two                    prints negative/60 then positive/10
//	empty                  exits 0 without output
//	garbage                prints a line that is not JSON
//	out-of-range           prints confidence 140
//	no-label               prints only a confidence
//	signal                 kills itself with SIGKILL
//	flood                  writes FloodLines lines to stdout and stderr at once
//	echo:<label>:<conf>    prints that label and confidence plus the text
//	anything else          prints positive/87
package workertest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"sentiment-api/internal/worker"
)

const envKey = "SENTIMENT_FAKE_WORKER"

// FloodLines is how many lines the flood behaviour writes to each stream.
const FloodLines = 3000

// MaybeRun turns the current process into the fake worker when it was
// started by Options. Call it first thing in TestMain.
func MaybeRun() {
	if os.Getenv(envKey) != "1" {
		return
	}
	os.Exit(run(os.Args[len(os.Args)-1]))
}

// Options returns worker options that launch the fake worker.
func Options(timeout time.Duration) worker.Options {
	return worker.Options{
		Python:     os.Args[0],
		PythonArgs: []string{"-test.run=^$"},
		Script:     "predict.py",
		Env:        []string{envKey + "=1"},
		Timeout:    timeout,
	}
}

func emit(v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(os.Stdout, string(b))
}

func run(text string) int {
	switch {
	case text == "sleep":
		time.Sleep(time.Minute)
		return 0
	case text == "crash":
		fmt.Fprintln(os.Stderr, "Traceback (most recent call last):")
		fmt.Fprintln(os.Stderr, "RuntimeError: CUDA out of memory")
		return 3
	case text == "fail":
		fmt.Fprintln(os.Stderr, "loading model")
		emit(map[string]any{"error": "Model directory not found", "sentiment": "neutral", "confidence": 0})
		return 1
	case text == "two":
		emit(map[string]any{"sentiment": "negative", "confidence": 60})
		emit(map[string]any{"sentiment": "positive", "confidence": 10})
		return 0
	case text == "empty":
		return 0
	case text == "garbage":
		fmt.Fprintln(os.Stdout, "Some weights of the model were not used")
		return 0
	case text == "out-of-range":
		emit(map[string]any{"sentiment": "positive", "confidence": 140})
		return 0
	case text == "no-label":
		emit(map[string]any{"confidence": 55})
		return 0
	case text == "signal":
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Kill()
		time.Sleep(time.Second)
		return 0
	case text == "flood":
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < FloodLines; i++ {
				emit(map[string]any{"sentiment": "neutral", "confidence": 50, "seq": i})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < FloodLines; i++ {
				fmt.Fprintf(os.Stderr, "progress %d\n", i)
			}
		}()
		wg.Wait()
		return 0
	case strings.HasPrefix(text, "echo:"):
		parts := strings.SplitN(text, ":", 3)
		conf, _ := strconv.ParseFloat(parts[len(parts)-1], 64)
		emit(map[string]any{"sentiment": parts[1], "confidence": conf, "echo": text})
		return 0
	default:
		emit(map[string]any{"sentiment": "positive", "confidence": 87})
		return 0
	}
}
