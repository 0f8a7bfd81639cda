package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-api/internal/history"
	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/worker"
	"sentiment-api/internal/worker/workertest"
)

func TestMain(m *testing.M) {
	workertest.MaybeRun()
	os.Exit(m.Run())
}

type countingInvoker struct {
	calls atomic.Int32
	next  Invoker
}

func (c *countingInvoker) Invoke(ctx context.Context, text string) (*worker.Invocation, error) {
	c.calls.Add(1)
	return c.next.Invoke(ctx, text)
}

type failingInvoker struct{ err error }

func (f failingInvoker) Invoke(context.Context, string) (*worker.Invocation, error) {
	return nil, f.err
}

type envelope struct {
	Success bool     `json:"success"`
	Data    Analysis `json:"data"`
	Code    string   `json:"code"`
	Error   string   `json:"error"`
	Details *string  `json:"details"`
}

type testServer struct {
	router  *gin.Engine
	invoker *countingInvoker
	repo    *history.MemoryRepo
	svc     *Service

	mu     sync.Mutex
	trails []string
}

func newTestServer(t *testing.T, timeout time.Duration) *testServer {
	t.Helper()
	return newTestServerWith(t, worker.NewClient(workertest.Options(timeout)))
}

func newTestServerWith(t *testing.T, inv Invoker) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		invoker: &countingInvoker{next: inv},
		repo:    history.NewMemoryRepo(100),
	}
	ts.router = gin.New()
	ts.router.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Next()
		ts.mu.Lock()
		ts.trails = append(ts.trails, c.GetString(middleware.StatusTransitionKey))
		ts.mu.Unlock()
	})
	ts.svc = NewService(ts.invoker, ts.repo)
	NewHandler(ts.svc, 1024).RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) post(t *testing.T, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)

	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return resp, env
}

func textBody(text string) string {
	b, _ := json.Marshal(map[string]string{"text": text})
	return string(b)
}

func TestAnalyzeHealthyWorker(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)

	resp, env := ts.post(t, textBody("  I love this product  "))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)
	assert.Equal(t, Positive, env.Data.Sentiment)
	assert.InDelta(t, 87.0, env.Data.Confidence, 0.001)
	assert.Equal(t, "I love this product", env.Data.Text)
	assert.Equal(t, []string{"Received->Validated->Dispatched->Correlated->Responded"}, ts.trails)
}

func TestAnalyzeRejectsInvalidTextWithoutSpawning(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty", body: textBody(""), message: "Text is required"},
		{name: "whitespace", body: textBody("   \n\t"), message: "Text is required"},
		{name: "missing field", body: `{}`, message: "Text is required"},
		{name: "null field", body: `{"text":null}`, message: "Text is required"},
		{name: "empty body", body: ``, message: "Text is required"},
		{name: "too long", body: textBody(strings.Repeat("x", 501)), message: "Text must be less than 500 characters"},
		{name: "not a string", body: `{"text":42}`, message: "Text must be a string"},
		{name: "invalid json", body: `{"text":`, message: "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := ts.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "VALIDATION_FAILED", env.Code)
			assert.Equal(t, tt.message, env.Error)
		})
	}
	assert.Zero(t, ts.invoker.calls.Load())
	assert.Equal(t, "Received->Responded", ts.trails[0])
}

func TestAnalyzeRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)

	resp, env := ts.post(t, textBody(strings.Repeat("x", 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Equal(t, "BODY_TOO_LARGE", env.Code)
	assert.Zero(t, ts.invoker.calls.Load())
}

func TestAnalyzeWorkerTimeout(t *testing.T) {
	ts := newTestServer(t, 300*time.Millisecond)

	start := time.Now()
	resp, env := ts.post(t, textBody("sleep"))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "WORKER_TIMEOUT", env.Code)
	assert.Equal(t, "Prediction timed out", env.Error)
	require.NotNil(t, env.Details)
	assert.Contains(t, *env.Details, "timed out after")
}

func TestAnalyzeUsesFirstMessageOnly(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)

	resp, env := ts.post(t, textBody("two"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, Negative, env.Data.Sentiment)
	assert.InDelta(t, 60.0, env.Data.Confidence, 0.001)

	require.NoError(t, ts.svc.Wait(context.Background()))
	recs, err := ts.repo.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].ExtraMessages)
}

func TestAnalyzeWorkerFailures(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)

	tests := []struct {
		text    string
		code    string
		message string
		details []string
	}{
		{text: "crash", code: "WORKER_CRASHED", message: "Prediction failed", details: []string{"exit code 3", "RuntimeError: CUDA out of memory"}},
		{text: "fail", code: "WORKER_CRASHED", message: "Prediction failed", details: []string{"Model directory not found", "loading model"}},
		{text: "signal", code: "WORKER_CRASHED", message: "Prediction failed", details: []string{"signal"}},
		{text: "empty", code: "NO_OUTPUT", message: "No response from inference worker"},
		{text: "garbage", code: "MALFORMED_OUTPUT", message: "Invalid response from inference worker", details: []string{"Some weights"}},
		{text: "out-of-range", code: "MALFORMED_OUTPUT", message: "Invalid response from inference worker", details: []string{"outside [0,100]"}},
		{text: "no-label", code: "MALFORMED_OUTPUT", message: "Invalid response from inference worker"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			resp, env := ts.post(t, textBody(tt.text))
			assert.Equal(t, http.StatusInternalServerError, resp.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.message, env.Error)
			require.NotNil(t, env.Details)
			for _, d := range tt.details {
				assert.Contains(t, *env.Details, d)
			}
		})
	}
}

func TestAnalyzeInternalFaultHidesDetails(t *testing.T) {
	ts := newTestServerWith(t, failingInvoker{err: errors.New("secret: pool exhausted")})

	resp, env := ts.post(t, textBody("hello"))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "INTERNAL_FAULT", env.Code)
	assert.Equal(t, "Internal server error", env.Error)
	assert.Nil(t, env.Details)
	assert.NotContains(t, resp.Body.String(), "secret")
}

func TestAnalyzeStartFailureIsCrash(t *testing.T) {
	ts := newTestServerWith(t, worker.NewClient(worker.Options{Python: "/nonexistent/python", Script: "predict.py"}))

	resp, env := ts.post(t, textBody("hello"))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "WORKER_CRASHED", env.Code)
	require.NotNil(t, env.Details)
	assert.Contains(t, *env.Details, "could not start inference worker")
}

func TestAnalyzeConcurrentRequestsStayIsolated(t *testing.T) {
	ts := newTestServer(t, 10*time.Second)
	labels := []Sentiment{Positive, Negative, Neutral}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("echo:%s:%d", labels[i%3], i*10)
			resp, env := ts.post(t, textBody(text))
			if !assert.Equal(t, http.StatusOK, resp.Code) {
				return
			}
			assert.Equal(t, text, env.Data.Text)
			assert.Equal(t, labels[i%3], env.Data.Sentiment)
			assert.InDelta(t, float64(i*10), env.Data.Confidence, 0.001)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(10), ts.invoker.calls.Load())
}

func TestFailValidationWithoutDetailUsesGenericMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(http.MethodPost, "/analyze", nil)

	NewHandler(nil, 0).fail(c, &DispatchError{Kind: KindValidationFailed})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.JSONEq(t, `{"success":false,"code":"VALIDATION_FAILED","error":"Invalid request"}`, resp.Body.String())
}
