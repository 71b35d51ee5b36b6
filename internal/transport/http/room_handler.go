package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// ErrorResponse is the body of every failed REST call.
type ErrorResponse struct {
	Error string `json:"error"`
}

type RoomHandler struct {
	rooms    *app.RoomService
	maxBytes int64
	logger   *slog.Logger
}

func NewRoomHandler(rooms *app.RoomService, maxBytes int64, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{rooms: rooms, maxBytes: maxBytes, logger: logger.With(slog.String("component", "rooms-http"))}
}

// CreateRoom handles POST /api/create-room (multipart/form-data).
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file required"})
		return
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
		return
	}

	params, err := parseGenerationParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable file"})
		return
	}

	resp, err := h.rooms.CreateRoom(c.Request.Context(), app.CreateRoomRequest{
		Document: domain.Document{
			Name:        fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Data:        data,
		},
		Params:     params,
		Credential: c.PostForm("password"),
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "failed to create room"
		switch {
		case errors.Is(err, domain.ErrExtractionFailed):
			status, message = http.StatusBadGateway, "text extraction failed"
		case errors.Is(err, domain.ErrGenerationFailed):
			status, message = http.StatusBadGateway, "quiz generation failed"
		}
		h.logger.Error("create room failed", slog.String("file", fileHeader.Filename), slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: message})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRoom handles GET /api/room/:id.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	summary, err := h.rooms.Summary(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if err != nil {
		h.logger.Error("load room failed", slog.String("room", c.Param("id")), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseGenerationParams(c *gin.Context) (domain.GenerationParams, error) {
	params := domain.DefaultGenerationParams()
	ints := []struct {
		field  string
		target *int
	}{
		{"totalQuestions", &params.TotalQuestions},
		{"mcq", &params.Types.MultipleChoice},
		{"tf", &params.Types.TrueFalse},
		{"fill", &params.Types.FillBlank},
		{"timePerQ", &params.TimePerQuestion},
	}
	for _, f := range ints {
		raw := c.PostForm(f.field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return params, errors.New("invalid " + f.field)
		}
		*f.target = n
	}
	if raw := c.PostForm("difficultySplit"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params.DifficultySplit); err != nil {
			return params, errors.New("invalid difficultySplit")
		}
	}
	return params, nil
}
