package sentiment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/server/respond"
	"sentiment-api/internal/shared/telemetry"
)

// State is a step of the per-request lifecycle.
type State string

const (
	StateReceived   State = "Received"
	StateValidated  State = "Validated"
	StateDispatched State = "Dispatched"
	StateCorrelated State = "Correlated"
	StateResponded  State = "Responded"
)

const defaultMaxBodyBytes = 16 << 10

// Handler serves POST /analyze.
type Handler struct {
	Svc          *Service
	MaxBodyBytes int64
	// Middleware runs before the analyze handler only, e.g. a rate limit.
	Middleware []gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxBodyBytes int64, mw ...gin.HandlerFunc) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{Svc: svc, MaxBodyBytes: maxBodyBytes, Middleware: mw}
}

// RegisterRoutes attaches the analyze route to the router group.
func (h *Handler) RegisterRoutes(rg gin.IRouter) {
	chain := append(append([]gin.HandlerFunc{}, h.Middleware...), h.analyze)
	rg.POST("/analyze", chain...)
}

type trail []State

func (t *trail) push(s State) { *t = append(*t, s) }

func (t trail) String() string {
	parts := make([]string, len(t))
	for i, s := range t {
		parts[i] = string(s)
	}
	return strings.Join(parts, "->")
}

func (h *Handler) analyze(c *gin.Context) {
	states := trail{StateReceived}
	defer func() {
		states.push(StateResponded)
		c.Set(middleware.StatusTransitionKey, states.String())
	}()

	var req AnalysisRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBodyBytes)
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.rejectBody(c, err)
		return
	}

	raw := ""
	if req.Text != nil {
		raw = *req.Text
	}
	text, err := Validate(raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	states.push(StateValidated)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	states.push(StateDispatched)
	out, err := h.Svc.Dispatch(ctx, text)
	if out.InvocationID != "" {
		c.Set(middleware.InvocationIDKey, out.InvocationID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	states.push(StateCorrelated)

	c.Set(middleware.OutcomeKey, "ok")
	respond.OK(c, Analysis{
		Sentiment:  out.Result.Sentiment,
		Confidence: out.Result.Confidence,
		Text:       text,
	})
}

func (h *Handler) rejectBody(c *gin.Context, err error) {
	c.Set(middleware.OutcomeKey, string(KindValidationFailed))
	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeBodyTooLarge, "Request body too large", "")
	case errors.As(err, &typeErr) && typeErr.Field == "text":
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Text must be a string", "")
	default:
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Invalid JSON body", "")
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	derr := AsDispatchError(err)
	c.Set(middleware.OutcomeKey, string(derr.Kind))

	switch derr.Kind {
	case KindValidationFailed:
		msg := derr.Detail
		if msg == "" {
			msg = derr.Kind.Message()
		}
		respond.Error(c, derr.Kind.Status(), derr.Kind.Code(), msg, "")
	case KindInternalFault:
		telemetry.Error("analyze.internal_fault", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      derr.Detail,
		})
		respond.Error(c, derr.Kind.Status(), derr.Kind.Code(), derr.Kind.Message(), "")
	default:
		respond.Error(c, derr.Kind.Status(), derr.Kind.Code(), derr.Kind.Message(), derr.Detail)
	}
}
