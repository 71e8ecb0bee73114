package analyses

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"trisenti-backend/internal/shared/server/respond"
)

const (
	maxUploadBytes = 50 << 20
	// Below this length the submission is accepted but the response carries
	// an advisory hint; it is a UI nudge, not a precondition.
	minRecommendedTextChars = 10
)

var allowedExtensions = map[Modality]map[string]struct{}{
	ModalityVideo: {".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}},
	ModalityAudio: {".wav": {}, ".mp3": {}, ".m4a": {}},
}

// Handler wires HTTP handlers to the lifecycle controller.
type Handler struct {
	Ctrl *Controller
}

// NewHandler constructs a Handler.
func NewHandler(ctrl *Controller) *Handler {
	return &Handler{Ctrl: ctrl}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submitFile)
	rg.POST("/analyses/text", h.submitText)
	rg.GET("/analyses", h.listHistory)
	rg.GET("/analyses/current", h.currentAnalysis)
	rg.GET("/analyses/watch", h.watch)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.POST("/analyses/:id/recall", h.recallAnalysis)
}

// recordView is the wire shape of a record; stageName saves the renderer a
// copy of the stage catalog.
type recordView struct {
	AnalysisRecord
	StageName string `json:"stageName"`
}

func view(record AnalysisRecord) recordView {
	return recordView{AnalysisRecord: record, StageName: StageName(record.Stage)}
}

func (h *Handler) submitFile(c *gin.Context) {
	modality := Modality(strings.ToLower(strings.TrimSpace(c.PostForm("modality"))))
	if modality != ModalityVideo && modality != ModalityAudio {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "modality must be video or audio", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "invalid_input", "file exceeds the upload limit", nil)
		return
	}
	ext := strings.ToLower(path.Ext(fileHeader.Filename))
	if _, ok := allowedExtensions[modality][ext]; !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "unsupported file type "+ext, nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "file could not be read", nil)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "file could not be read", nil)
		return
	}

	record, err := h.Ctrl.SubmitFile(c.Request.Context(), modality, fileHeader.Filename, content)
	if err != nil {
		h.submitError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"analysis": view(record)})
}

type textSubmission struct {
	Text string `json:"text"`
}

func (h *Handler) submitText(c *gin.Context) {
	var payload textSubmission
	if err := c.ShouldBindJSON(&payload); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "request body must be JSON with a text field", nil)
		return
	}

	record, err := h.Ctrl.SubmitText(c.Request.Context(), payload.Text)
	if err != nil {
		h.submitError(c, err)
		return
	}

	resp := gin.H{"analysis": view(record)}
	if len(strings.TrimSpace(payload.Text)) < minRecommendedTextChars {
		resp["hint"] = "Minimum 10 characters recommended for reliable sentiment analysis"
	}
	respond.JSON(c, http.StatusAccepted, resp)
}

func (h *Handler) submitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, ErrAnalysisInFlight):
		respond.Error(c, http.StatusConflict, "analysis_in_flight", "an analysis is already in progress", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
	}
}

func (h *Handler) currentAnalysis(c *gin.Context) {
	record, ok := h.Ctrl.Current()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	respond.OK(c, gin.H{"analysis": view(record)})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	record, err := h.Ctrl.History.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, gin.H{"analysis": view(record)})
}

func (h *Handler) recallAnalysis(c *gin.Context) {
	record, err := h.Ctrl.Recall(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to recall analysis", nil)
		}
		return
	}
	respond.OK(c, gin.H{"analysis": view(record)})
}

func (h *Handler) listHistory(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.Ctrl.History.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]recordView, 0, len(records))
	for _, record := range records {
		resp = append(resp, view(record))
	}
	respond.OK(c, gin.H{"analyses": resp})
}
