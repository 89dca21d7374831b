package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/http/v1/dto"
)

// DefaultMaxUploadBytes bounds a manifest upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 32 << 20

// ParcelHandler handles manifest import and scan-in endpoints.
type ParcelHandler struct {
	*BaseHandler
	service        *parcel.Service
	maxUploadBytes int64
}

// NewParcelHandler creates a new parcel handler.
func NewParcelHandler(base *BaseHandler, service *parcel.Service, maxUploadBytes int64) *ParcelHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ParcelHandler{
		BaseHandler:    base,
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload imports a manifest sent as multipart field "file".
// POST /api/v1/parcels/upload
func (h *ParcelHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := apperror.NewValidation("file too large").WithDetail("max_bytes", h.maxUploadBytes)
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			h.Error(c, appErr)
			return
		}
		h.Error(c, apperror.NewValidation("multipart field \"file\" is required"))
		return
	}

	f, err := header.Open()
	if err != nil {
		h.Error(c, apperror.NewReadFailure(header.Filename, err))
		return
	}
	defer f.Close()

	report, err := h.service.ImportFile(c.Request.Context(), header.Filename, f)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ImportResponse{FileName: header.Filename, ImportReport: report})
}

// Scan registers a scan of one parcel by the authenticated operator.
// POST /api/v1/parcels/scan/:trackingNumber
func (h *ParcelHandler) Scan(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")

	result, err := h.service.Scan(c.Request.Context(), trackingNumber, h.GetActorID(c), h.GetSessionID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromScanResult(strings.TrimSpace(trackingNumber), result))
}

// List returns parcels filtered by the status query parameter.
// GET /api/v1/parcels?status=PENDING
func (h *ParcelHandler) List(c *gin.Context) {
	h.listByStatus(c, parcel.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))))
}

// Pending returns parcels waiting for a scan.
// GET /api/v1/parcels/pending
func (h *ParcelHandler) Pending(c *gin.Context) {
	h.listByStatus(c, parcel.StatusPending)
}

// Scanned returns parcels already scanned in.
// GET /api/v1/parcels/scanned
func (h *ParcelHandler) Scanned(c *gin.Context) {
	h.listByStatus(c, parcel.StatusScanned)
}

func (h *ParcelHandler) listByStatus(c *gin.Context, status parcel.Status) {
	parcels, err := h.service.ListByStatus(c.Request.Context(), status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromParcels(parcels)))
}

// Get returns one parcel.
// GET /api/v1/parcels/:trackingNumber
func (h *ParcelHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromParcel(p))
}

// Imports lists archived manifest uploads, newest first.
// GET /api/v1/parcels/imports?limit=50
func (h *ParcelHandler) Imports(c *gin.Context) {
	limit, ok := h.ParseIntQuery(c, "limit", parcel.DefaultBatchListLimit)
	if !ok {
		return
	}

	batches, err := h.service.Batches(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromBatches(batches)))
}

// ImportContent downloads the archived manifest of one import.
// GET /api/v1/parcels/imports/:batchId/content
func (h *ParcelHandler) ImportContent(c *gin.Context) {
	batch, err := h.service.Batch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": batch.FileName}))
	c.Data(http.StatusOK, "application/octet-stream", batch.Content)
}

// Clear removes all parcels, audit events and archived imports.
// DELETE /api/v1/parcels/clear
func (h *ParcelHandler) Clear(c *gin.Context) {
	res, err := h.service.ClearAll(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
