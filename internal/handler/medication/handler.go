package medication

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meditrack/adherence-api/internal/adherence"
	"github.com/meditrack/adherence-api/internal/handler"
	"github.com/meditrack/adherence-api/internal/model"
	"github.com/meditrack/adherence-api/internal/repository"
	"github.com/meditrack/adherence-api/internal/service/medication"
	apperrors "github.com/meditrack/adherence-api/pkg/errors"
)

type Handler struct {
	service    *medication.Service
	outboxRepo repository.OutboxRepository
}

func NewHandler(service *medication.Service, outboxRepo repository.OutboxRepository) *Handler {
	return &Handler{
		service:    service,
		outboxRepo: outboxRepo,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	meds := r.Group("/medications")
	{
		meds.POST("", h.CreateMedication)
		meds.GET("", h.ListMedications)
		meds.GET("/due", h.DueNow)
		meds.GET("/:id", h.GetMedication)
		meds.PUT("/:id", h.UpdateMedication)
		meds.DELETE("/:id", h.DeleteMedication)

		meds.POST("/:id/dose", h.RecordDose)
		meds.POST("/:id/schedule/:index/taken", h.TakeScheduledDose)
		meds.POST("/:id/schedule/:index/skipped", h.SkipScheduledDose)

		meds.GET("/:id/adherence", h.GetAdherence)
		meds.GET("/:id/next-dose", h.GetNextDose)
	}

	r.GET("/schedule/today", h.TodaySchedule)
}

func (h *Handler) CreateMedication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req model.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	med, err := h.service.CreateMedication(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to add medication"))
		return
	}

	h.publishEvent(c, model.EventMedicationCreated, med)
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(med))
}

func (h *Handler) GetMedication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	med, err := h.service.GetMedication(c.Request.Context(), userID, id)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) ListMedications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	activeOnly := c.Query("active") == "true"
	meds, err := h.service.ListMedications(c.Request.Context(), userID, activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to fetch medications"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"count":       len(meds),
		"medications": meds,
	}))
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	var req model.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	med, err := h.service.UpdateMedication(c.Request.Context(), userID, id, &req)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	h.publishEvent(c, model.EventMedicationUpdated, med)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) DeleteMedication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	if err := h.service.DeleteMedication(c.Request.Context(), userID, id); err != nil {
		respondFetchError(c, err)
		return
	}

	h.publishEvent(c, model.EventMedicationDeleted, gin.H{"id": id})
	c.JSON(http.StatusOK, &handler.Response{Status: "success", Message: "medication deleted successfully"})
}

func (h *Handler) RecordDose(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	var req model.RecordDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	takenAt := time.Now()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}

	med, err := h.service.RecordDose(c.Request.Context(), userID, id, takenAt, req.Notes)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	h.publishEvent(c, model.EventDoseRecorded, gin.H{
		"medication_id": med.ID,
		"taken_at":      takenAt,
	})
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) TakeScheduledDose(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule index"))
		return
	}

	// Body is optional for this endpoint.
	var req model.RecordDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = model.RecordDoseRequest{}
	}

	takenAt := time.Now()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}

	med, err := h.service.TakeScheduledDose(c.Request.Context(), userID, id, index, takenAt)
	if err != nil {
		if errors.Is(err, model.ErrScheduleIndexOutOfRange) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
		respondFetchError(c, err)
		return
	}

	h.publishEvent(c, model.EventDoseRecorded, gin.H{
		"medication_id":  med.ID,
		"schedule_index": index,
		"taken_at":       takenAt,
	})
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) SkipScheduledDose(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule index"))
		return
	}

	var req model.SkipDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = model.SkipDoseRequest{}
	}

	med, err := h.service.SkipScheduledDose(c.Request.Context(), userID, id, index, req.Reason)
	if err != nil {
		if errors.Is(err, model.ErrScheduleIndexOutOfRange) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
		respondFetchError(c, err)
		return
	}

	h.publishEvent(c, model.EventDoseSkipped, gin.H{
		"medication_id":  med.ID,
		"schedule_index": index,
		"reason":         req.Reason,
	})
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) GetAdherence(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	days := adherence.DefaultLookbackDays
	if raw := c.Query("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("days must be a positive integer"))
			return
		}
	}

	var rolling bool
	switch c.DefaultQuery("mode", "window") {
	case "window":
	case "rolling":
		rolling = true
	default:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("mode must be window or rolling"))
		return
	}

	stats, err := h.service.AdherenceStats(c.Request.Context(), userID, id, days, time.Now(), rolling)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"adherence": stats}))
}

func (h *Handler) GetNextDose(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	next, err := h.service.NextDose(c.Request.Context(), userID, id, time.Now())
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(next))
}

func (h *Handler) TodaySchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	schedule, err := h.service.TodaySchedule(c.Request.Context(), userID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to fetch schedule"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

func (h *Handler) DueNow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	window := adherence.DefaultDueWindowMinutes
	if raw := c.Query("window"); raw != "" {
		var err error
		window, err = strconv.Atoi(raw)
		if err != nil || window <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("window must be a positive integer"))
			return
		}
	}

	meds, err := h.service.DueNow(c.Request.Context(), userID, time.Now(), window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to fetch due medications"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"count":       len(meds),
		"medications": meds,
	}))
}

func (h *Handler) publishEvent(c *gin.Context, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox payload")
		return
	}
	if err := h.outboxRepo.Create(c.Request.Context(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to create outbox event")
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user identity"))
		c.Abort()
		return uuid.Nil, false
	}
	return id, true
}

func respondFetchError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.Is(err, repository.ErrNotFound) {
		appErr = apperrors.NotFound("medication", err)
	} else {
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
}
