package history

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"sentiment-api/internal/shared/server/respond"
)

// Handler serves recent analysis history.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches history routes to the router group.
func (h *Handler) RegisterRoutes(rg gin.IRouter) {
	rg.GET("/analyses", h.listRecent)
}

type recordDTO struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId,omitempty"`
	Text          string    `json:"text"`
	Outcome       string    `json:"outcome"`
	Sentiment     string    `json:"sentiment,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	WorkerStatus  string    `json:"workerStatus,omitempty"`
	ExitCode      *int      `json:"exitCode,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	ExtraMessages int       `json:"extraMessages"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (h *Handler) listRecent(c *gin.Context) {
	limit := DefaultListLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "limit must be a number", "")
			return
		}
		limit = parsed
	}

	records, err := h.Repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to list analyses", "")
		return
	}

	respond.OK(c, lo.Map(records, func(r Record, _ int) recordDTO {
		return recordDTO{
			ID:            r.ID,
			RequestID:     r.RequestID,
			Text:          r.Text,
			Outcome:       r.Outcome,
			Sentiment:     r.Sentiment,
			Confidence:    r.Confidence,
			WorkerStatus:  r.WorkerStatus,
			ExitCode:      r.ExitCode,
			DurationMs:    r.DurationMs,
			ExtraMessages: r.ExtraMessages,
			CreatedAt:     r.CreatedAt,
		}
	}))
}
