package api

import (
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mwzhu/unwatermark"
	"github.com/mwzhu/unwatermark/internal/utils"
	"github.com/mwzhu/unwatermark/pkg/locate"
	"github.com/mwzhu/unwatermark/pkg/types"
)

type handler struct {
	engine *unwatermark.Engine
	config *Config
	log    zerolog.Logger
}

// removeResponse is the JSON body returned by the remove endpoint.
type removeResponse struct {
	Filename   string       `json:"filename"`
	Data       string       `json:"data"`
	Status     string       `json:"status"`
	Confidence float64      `json:"confidence"`
	Region     types.Region `json:"region"`
	SizeClass  string       `json:"size_class"`
}

// detectResponse is the JSON body returned by the detect endpoint.
type detectResponse struct {
	Filename   string       `json:"filename"`
	Present    bool         `json:"present"`
	Confidence float64      `json:"confidence"`
	Region     types.Region `json:"region"`
	SizeClass  string       `json:"size_class"`
}

// HandleRemove accepts a multipart image upload, restores the overlay region
// and returns the cleaned image as a base64 PNG payload.
func (h *handler) HandleRemove(c *gin.Context) {
	img, name, ok := h.readUpload(c)
	if !ok {
		return
	}

	cleaned, det, err := h.engine.Remove(img)
	if err != nil {
		if errors.Is(err, locate.ErrTooSmall) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := h.engine.Processor().EncodePNGBase64(cleaned)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode result"})
		return
	}

	h.log.Info().
		Str("file", name).
		Float64("confidence", det.Confidence).
		Stringer("region", det.Region).
		Msg("removed overlay")

	c.JSON(http.StatusOK, removeResponse{
		Filename:   outputName(name),
		Data:       data,
		Status:     string(types.StatusSuccess),
		Confidence: det.Confidence,
		Region:     det.Region,
		SizeClass:  det.Class.String(),
	})
}

// HandleDetect scores the overlay's presence without modifying the image.
// An optional threshold form field overrides the configured one.
func (h *handler) HandleDetect(c *gin.Context) {
	img, name, ok := h.readUpload(c)
	if !ok {
		return
	}

	threshold := h.config.Threshold
	if v, err := strconv.ParseFloat(c.PostForm("threshold"), 64); err == nil {
		threshold = v
	}

	det, err := h.engine.Detect(img)
	if err != nil {
		if errors.Is(err, locate.ErrTooSmall) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detectResponse{
		Filename:   name,
		Present:    det.Confidence >= threshold,
		Confidence: det.Confidence,
		Region:     det.Region,
		SizeClass:  det.Class.String(),
	})
}

// HandleHealth reports service liveness.
func (h *handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": unwatermark.GetVersion()})
}

// readUpload validates and decodes the multipart "image" field. On failure
// it writes the error response and returns ok=false.
func (h *handler) readUpload(c *gin.Context) (img image.Image, name string, ok bool) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return nil, "", false
	}
	defer file.Close()

	if err := validateUpload(header, h.config.MaxFileSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, h.config.MaxFileSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return nil, "", false
	}
	if int64(len(data)) > h.config.MaxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds size limit"})
		return nil, "", false
	}

	decoded, err := h.engine.Processor().DecodeBytes(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported or corrupt image"})
		return nil, "", false
	}

	return decoded, utils.SanitizeFilename(header.Filename), true
}

func validateUpload(header *multipart.FileHeader, maxSize int64) error {
	if header.Size > maxSize {
		return fmt.Errorf("file exceeds size limit (%d bytes)", maxSize)
	}
	if !utils.IsImageFile(header.Filename) {
		return fmt.Errorf("unsupported file extension %q", filepath.Ext(header.Filename))
	}
	return nil
}

// outputName mirrors the batch layer's naming for downloaded results.
func outputName(original string) string {
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	if stem == "" {
		stem = "image"
	}
	return "unwatermarked_" + stem + ".png"
}
