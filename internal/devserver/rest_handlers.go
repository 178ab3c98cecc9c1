package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/store"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateShadowRequest is the body of POST /createShadow.
type CreateShadowRequest struct {
	ShadowID   string `json:"shadowId" binding:"required"`
	ShadowPass string `json:"shadowPass" binding:"required"`
}

// RESTHandlers serves the room and image endpoints.
type RESTHandlers struct {
	store          store.RoomStore
	metrics        *Metrics
	log            *zerolog.Logger
	uploadDir      string
	maxUploadBytes int64
	bcryptCost     int
}

// NewRESTHandlers creates the handlers and makes sure uploadDir exists.
func NewRESTHandlers(st store.RoomStore, uploadDir string, maxUploadBytes int64, metrics *Metrics, logger *zerolog.Logger) (*RESTHandlers, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &RESTHandlers{
		store:          st,
		metrics:        metrics,
		log:            logger,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// ValidateID reports whether a room id is well formed and still free.
// GET /validateId?query=
func (h *RESTHandlers) ValidateID(c *gin.Context) {
	id := c.Query("query")
	if !roomIDPattern.MatchString(id) {
		c.JSON(http.StatusOK, false)
		return
	}
	exists, err := h.roomExists(c, id)
	if err != nil {
		h.internalError(c, err, "validate id")
		return
	}
	c.JSON(http.StatusOK, !exists)
}

// CreateShadow creates a password-protected room.
// POST /createShadow
func (h *RESTHandlers) CreateShadow(c *gin.Context) {
	var req CreateShadowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create shadow request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !roomIDPattern.MatchString(req.ShadowID) {
		c.JSON(http.StatusOK, false)
		return
	}

	hash, err := hashPassword(req.ShadowPass, h.bcryptCost)
	if err != nil {
		h.internalError(c, err, "create shadow")
		return
	}
	if _, err := h.store.CreateRoom(c.Request.Context(), req.ShadowID, hash); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusOK, false)
			return
		}
		h.internalError(c, err, "create shadow")
		return
	}

	h.metrics.roomCreated()
	h.log.Info().Str("room", req.ShadowID).Msg("room created")
	c.JSON(http.StatusOK, true)
}

// CheckID reports whether a room exists.
// GET /checkId?id=
func (h *RESTHandlers) CheckID(c *gin.Context) {
	exists, err := h.roomExists(c, c.Query("id"))
	if err != nil {
		h.internalError(c, err, "check id")
		return
	}
	c.JSON(http.StatusOK, exists)
}

// ValidatePass reports whether pass opens room id.
// GET /validatePass?id=&pass=
func (h *RESTHandlers) ValidatePass(c *gin.Context) {
	room, err := h.store.GetRoom(c.Request.Context(), c.Query("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, false)
		return
	}
	if err != nil {
		h.internalError(c, err, "validate pass")
		return
	}
	ok, err := passwordMatches(room.PasswordHash, c.Query("pass"))
	if err != nil {
		h.internalError(c, err, "validate pass")
		return
	}
	c.JSON(http.StatusOK, ok)
}

// Activate answers the wake-up ping.
// GET /activateServer
func (h *RESTHandlers) Activate(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

// UploadImage stores multipart field "file" and returns the new file name.
// POST /uploadedImage
func (h *RESTHandlers) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		h.log.Debug().Err(err).Msg("invalid upload")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file"})
		return
	}

	name := utils.NewID() + imageExt(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		h.internalError(c, err, "save upload")
		return
	}

	h.metrics.uploaded(file.Size)
	h.log.Debug().Str("file", name).Int64("size", file.Size).Msg("image uploaded")
	c.JSON(http.StatusOK, name)
}

// Image serves an uploaded image.
// GET /images/:name
func (h *RESTHandlers) Image(c *gin.Context) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file name"})
		return
	}
	path := filepath.Join(h.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "image not found"})
		return
	}
	c.File(path)
}

func (h *RESTHandlers) roomExists(c *gin.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	_, err := h.store.GetRoom(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *RESTHandlers) internalError(c *gin.Context, err error, op string) {
	h.log.Error().Err(err).Str("op", op).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// imageExt keeps a short alphanumeric extension of the uploaded file name.
func imageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
