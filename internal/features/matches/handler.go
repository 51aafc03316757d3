package matches

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/pagination"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func matchID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid match ID", "INVALID_ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// Find godoc
// @Summary Find a random match
// @Description Gender and city filters apply to premium users only. Free users are limited per UTC day.
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Filters false "Optional filters"
// @Success 200 {object} response.SuccessResponse{data=FindResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /matches/find [post]
func (h *Handler) Find(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}

	var f Filters
	if err := c.ShouldBindJSON(&f); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	if err := ValidateFilters(&f); err != nil {
		response.BadRequest(c, err.Error(), "VALIDATION_FAILED")
		return
	}

	result, err := h.service.FindMatch(c.Request.Context(), user.ID, f)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Create godoc
// @Summary Create a match with a specific user
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateMatchRequest true "Partner"
// @Success 201 {object} response.SuccessResponse{data=View}
// @Failure 409 {object} response.ErrorResponse
// @Router /matches [post]
func (h *Handler) Create(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}

	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	partnerID, err := primitive.ObjectIDFromHex(req.PartnerID)
	if err != nil {
		response.BadRequest(c, "Invalid partner ID", "INVALID_ID")
		return
	}

	ctx := c.Request.Context()
	m, err := h.service.Create(ctx, user.ID, partnerID, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.service.Get(ctx, m.ID, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, view)
}

// List godoc
// @Summary List active matches
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.SuccessResponse{data=[]View}
// @Router /matches [get]
func (h *Handler) List(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	views, err := h.service.ListActive(c.Request.Context(), user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, views)
}

// Get godoc
// @Summary Get a match
// @Description The partner's profile is revealed according to the match's unlock tier
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Success 200 {object} response.SuccessResponse{data=View}
// @Failure 404 {object} response.ErrorResponse
// @Router /matches/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

// SendMessage godoc
// @Summary Send a chat message
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} response.SuccessResponse{data=SendResult}
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /matches/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Message text is required", "INVALID_JSON")
		return
	}

	result, err := h.service.SendMessage(c.Request.Context(), id, user.ID, req.Text)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// Messages godoc
// @Summary Chat history
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {object} response.PaginatedResponse{data=[]ChatMessage}
// @Router /matches/{id}/messages [get]
func (h *Handler) Messages(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}

	page := pagination.FromRequest(c.Query("page"), c.Query("limit"))
	list, total, err := h.service.Messages(c.Request.Context(), id, user.ID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Paginated(c, list, total, page.Limit, page.Page)
}

// Unmatch godoc
// @Summary End a match
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Param request body UnmatchRequest false "Optional reason"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /matches/{id}/unmatch [post]
func (h *Handler) Unmatch(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}

	var req UnmatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	if err := ValidateUnmatch(&req); err != nil {
		response.BadRequest(c, err.Error(), "VALIDATION_FAILED")
		return
	}

	m, err := h.service.Unmatch(c.Request.Context(), id, user.ID, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"id": m.ID, "status": m.Status, "reason": m.EndReason})
}

// Extend godoc
// @Summary Extend a match by a day
// @Description Free users pay points; the extension applies even if the charge fails
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Success 200 {object} response.SuccessResponse{data=ExtendResult}
// @Failure 409 {object} response.ErrorResponse
// @Router /matches/{id}/extend [post]
func (h *Handler) Extend(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}
	result, err := h.service.Extend(c.Request.Context(), id, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// RequestSecretChat godoc
// @Summary Ask the partner for a secret chat
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Success 200 {object} response.SuccessResponse{data=SecretChat}
// @Router /matches/{id}/secret-chat/request [post]
func (h *Handler) RequestSecretChat(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}
	m, err := h.service.RequestSecretChat(c.Request.Context(), id, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, m.Secret)
}

// AcceptSecretChat godoc
// @Summary Accept a pending secret chat
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Param request body AcceptSecretChatRequest true "Duration in minutes"
// @Success 200 {object} response.SuccessResponse{data=SecretChat}
// @Failure 409 {object} response.ErrorResponse
// @Router /matches/{id}/secret-chat/accept [post]
func (h *Handler) AcceptSecretChat(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	id, ok := matchID(c)
	if !ok {
		return
	}

	var req AcceptSecretChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "minutes is required", "INVALID_JSON")
		return
	}

	m, err := h.service.AcceptSecretChat(c.Request.Context(), id, user.ID, req.Minutes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, m.Secret)
}
