package handler

import (
	"errors"
	"net/http"
	domainRecord "prodtest-collector/internal/domain/record"
	"prodtest-collector/internal/usecase/record"
	appErrors "prodtest-collector/pkg/errors"
	"prodtest-collector/pkg/utils"

	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	service *record.Service
}

func NewRecordHandler(service *record.Service) *RecordHandler {
	return &RecordHandler{service: service}
}

// RegisterRoutes wires the ingestion and read endpoints. Paths and casing
// are part of the client contract.
func (h *RecordHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/production-test", h.IngestRecord)
	router.GET("/summary", h.GetSummary)
	router.GET("/records", h.ListRecords)
	router.GET("/sn-list", h.ListSerialNumbers)
	router.GET("/export", h.ExportCSV)
}

func (h *RecordHandler) IngestRecord(c *gin.Context) {
	var req record.IngestRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Ingest(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *RecordHandler) GetSummary(c *gin.Context) {
	var q record.FilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), &q)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *RecordHandler) ListRecords(c *gin.Context) {
	var q record.RecordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	page, err := h.service.ListRecords(c.Request.Context(), &q)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *RecordHandler) ListSerialNumbers(c *gin.Context) {
	serials, err := h.service.SerialNumbers(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, serials)
}

func (h *RecordHandler) ExportCSV(c *gin.Context) {
	var q record.FilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	data, err := h.service.ExportCSV(c.Request.Context(), &q)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), err.Error())
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// statusForError maps validation failures to client errors; everything else
// is a server error (storage failures are not retried at this layer).
func statusForError(err error) int {
	var appErr *appErrors.AppError
	switch {
	case errors.As(err, &appErr),
		errors.Is(err, domainRecord.ErrSerialRequired),
		errors.Is(err, domainRecord.ErrDuplicateRecord):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
