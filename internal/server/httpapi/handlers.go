package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/wire"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	lib    Library
	loc    *time.Location
	logger logging.Logger
}

type idsBody struct {
	IDs []int64 `json:"ids"`
}

type hiddenBody struct {
	Hidden *bool `json:"hidden"`
}

type batchBody struct {
	Succeeded []int64          `json:"succeeded"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	state, err := h.lib.LastSync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	body := gin.H{"status": "ok"}
	if state != nil {
		body["lastSync"] = state.At
		body["lastSyncSkipped"] = state.Skipped
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Sync(c *gin.Context) {
	report, err := h.lib.Sync(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) ListMedia(c *gin.Context) {
	opts, err := models.ParseQueryOptions(c.Request.URL.Query(), h.loc)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidArgument, err))
		return
	}
	// the wire encoding has no group message
	if opts.GroupByDay && wantsWire(c) {
		h.writeError(c, fmt.Errorf("%w: group=day is only available as JSON", common.ErrInvalidArgument))
		return
	}
	res, err := h.lib.Query(c.Request.Context(), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if wantsWire(c) {
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalRecords(res.Items))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetMedia(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	rec, err := h.lib.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if wantsWire(c) {
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalRecord(*rec))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Content redirects to the catalog's URL for the item or, for catalogs
// without URLs, serves the local file the record points at.
func (h *Handler) Content(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	url, rec, err := h.lib.Locate(c.Request.Context(), id)
	switch {
	case err == nil:
		c.Redirect(http.StatusTemporaryRedirect, url)
	case errors.Is(err, catalog.ErrNotLocatable):
		if rec == nil || rec.Path == "" {
			h.writeError(c, fmt.Errorf("media[%d] content: %w", id, common.ErrorNotFound))
			return
		}
		if _, statErr := os.Stat(rec.Path); statErr != nil {
			h.writeError(c, fmt.Errorf("media[%d] content: %w", id, common.ErrorNotFound))
			return
		}
		if rec.MIMEType != "" {
			c.Header("Content-Type", rec.MIMEType)
		}
		c.File(rec.Path)
	default:
		h.writeError(c, err)
	}
}

func (h *Handler) ToggleFavorite(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	fav, err := h.lib.ToggleFavorite(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "isFavorite": fav})
}

func (h *Handler) SetHidden(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var body hiddenBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Hidden == nil {
		h.writeError(c, fmt.Errorf("%w: body must be {\"hidden\": bool}", common.ErrInvalidArgument))
		return
	}
	if err := h.lib.SetHidden(c.Request.Context(), id, *body.Hidden); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "isHidden": *body.Hidden})
}

func (h *Handler) SoftDelete(c *gin.Context) {
	h.batch(c, h.lib.SoftDelete)
}

func (h *Handler) Restore(c *gin.Context) {
	h.batch(c, h.lib.Restore)
}

func (h *Handler) batch(c *gin.Context, op func(ctx context.Context, ids []int64) ([]int64, error)) {
	ids, ok := h.bindIDs(c, true)
	if !ok {
		return
	}
	done, err := op(c.Request.Context(), ids)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchBody{Succeeded: nonNil(done)})
}

func (h *Handler) RecycleBin(c *gin.Context) {
	bin, err := h.lib.RecycleBin(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if wantsWire(c) {
		recs := make([]models.MetadataRecord, 0, len(bin))
		for _, e := range bin {
			recs = append(recs, e.MetadataRecord)
		}
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalRecords(recs))
		return
	}
	if bin == nil {
		bin = []models.RecycleBinEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": bin})
}

// Expired lists recycle-bin ids past the retention window. An optional
// ?window=<duration> overrides the configured window.
func (h *Handler) Expired(c *gin.Context) {
	window := h.lib.Retention()
	if s := c.Query("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			h.writeError(c, fmt.Errorf("%w: window: %w", common.ErrInvalidArgument, err))
			return
		}
		window = d
	}
	ids, err := h.lib.ScanExpired(c.Request.Context(), window)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": nonNil(ids)})
}

// Purge permanently deletes the given ids, or every expired item when the
// body names none. The whole batch is put to the user in one consent prompt.
func (h *Handler) Purge(c *gin.Context) {
	ids, ok := h.bindIDs(c, false)
	if !ok {
		return
	}

	var (
		report models.PermanentDeleteReport
		err    error
	)
	if len(ids) == 0 {
		report, err = h.lib.PurgeExpired(c.Request.Context())
	} else {
		report, err = h.lib.RequestPermanentDelete(c.Request.Context(), ids)
	}

	var batch *common.BatchError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.As(err, &batch):
		c.JSON(http.StatusMultiStatus, report)
	case errors.Is(err, common.ErrConsentDenied):
		c.JSON(http.StatusConflict, report)
	default:
		h.writeError(c, err)
	}
}

func (h *Handler) FavoriteIDs(c *gin.Context) {
	ids, err := h.lib.FavoriteIDs(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": nonNil(ids)})
}

func (h *Handler) DeletedIDs(c *gin.Context) {
	ids, err := h.lib.DeletedIDs(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": nonNil(ids)})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.lib.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, fmt.Errorf("%w: invalid id %q", common.ErrInvalidArgument, c.Param("id")))
		return 0, false
	}
	return id, true
}

// bindIDs reads {"ids": [...]}. An empty body is allowed unless required.
func (h *Handler) bindIDs(c *gin.Context, required bool) ([]int64, bool) {
	var body idsBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(c, fmt.Errorf("%w: body must be {\"ids\": [...]}", common.ErrInvalidArgument))
		return nil, false
	}
	if required && len(body.IDs) == 0 {
		h.writeError(c, fmt.Errorf("%w: no ids given", common.ErrInvalidArgument))
		return nil, false
	}
	return body.IDs, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var batch *common.BatchError
	switch {
	case errors.As(err, &batch):
		failed := make(map[int64]string, len(batch.Failed))
		for id, e := range batch.Failed {
			failed[id] = e.Error()
		}
		c.JSON(http.StatusMultiStatus, batchBody{Succeeded: nonNil(batch.Succeeded), Failed: failed})
	case errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrConsentDenied), errors.Is(err, common.ErrDeleteInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrorInternal.Error()})
	}
}

func wantsWire(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), wire.ContentType)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
