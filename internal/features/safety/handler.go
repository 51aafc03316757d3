package safety

import (
	"crypto/subtle"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func userParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid user ID", "INVALID_ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// RequireModerator admits callers presenting the shared moderation token.
// With no token configured the review endpoint is closed.
func RequireModerator(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Moderation-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Forbidden(c, "Moderator access required", "FORBIDDEN")
			c.Abort()
			return
		}
		c.Next()
	}
}

// BlockUser godoc
// @Summary Block a user
// @Description Ends any active match with the user. Blocking twice is harmless.
// @Tags safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID to block"
// @Param request body BlockRequest false "Optional reason"
// @Success 200 {object} response.SuccessResponse{data=Block}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /users/{id}/block [post]
func (h *Handler) BlockUser(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	targetID, ok := userParam(c)
	if !ok {
		return
	}

	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	if len(req.Reason) > 200 {
		response.BadRequest(c, "reason must be 200 characters or less", "VALIDATION_FAILED")
		return
	}

	block, err := h.service.Block(c.Request.Context(), user.ID, targetID, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, block)
}

// UnblockUser godoc
// @Summary Unblock a user
// @Description Ended matches are not restored
// @Tags safety
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID to unblock"
// @Success 200 {object} response.SuccessResponse
// @Router /users/{id}/block [delete]
func (h *Handler) UnblockUser(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	targetID, ok := userParam(c)
	if !ok {
		return
	}
	if err := h.service.Unblock(c.Request.Context(), user.ID, targetID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"unblocked": targetID})
}

// GetBlockedUsers godoc
// @Summary List blocked users
// @Tags safety
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.SuccessResponse{data=[]BlockedUser}
// @Failure 401 {object} response.ErrorResponse
// @Router /users/me/blocks [get]
func (h *Handler) GetBlockedUsers(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	list, err := h.service.ListBlocked(c.Request.Context(), user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// CreateReport godoc
// @Summary Report a user or their content
// @Tags safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReportRequest true "Report details"
// @Success 201 {object} response.SuccessResponse{data=Report}
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /reports [post]
func (h *Handler) CreateReport(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}

	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request", "INVALID_JSON")
		return
	}
	reportedID, err := primitive.ObjectIDFromHex(req.ReportedUserID)
	if err != nil {
		response.BadRequest(c, "Invalid reported user ID", "INVALID_ID")
		return
	}

	report, err := h.service.Report(c.Request.Context(), user.ID, ReportInput{
		Reported:    reportedID,
		ContentType: ContentType(req.ContentType),
		ContentID:   req.ContentID,
		Reason:      req.Reason,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, report)
}

// ReviewReport godoc
// @Summary Record a moderation decision on a report
// @Tags safety
// @Accept json
// @Produce json
// @Param X-Moderation-Token header string true "Moderation token"
// @Param id path string true "Report ID"
// @Param request body ReviewReportRequest true "New status"
// @Success 200 {object} response.SuccessResponse{data=Report}
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /reports/{id} [patch]
func (h *Handler) ReviewReport(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid report ID", "INVALID_ID")
		return
	}

	var req ReviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status must be reviewed or actioned", "INVALID_JSON")
		return
	}

	report, err := h.service.ReviewReport(c.Request.Context(), id, ReportStatus(req.Status))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}
