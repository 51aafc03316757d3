package users

import (
	"context"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/pkg/cloudinary"
	idToken "github.com/xyz-asif/blindmatch/internal/pkg/jwt"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type store interface {
	UserLoader
	GetUserByAlias(ctx context.Context, alias string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfileUpdate) (*User, error)
	SetPhoto(ctx context.Context, id primitive.ObjectID, publicID string) error
}

// PhotoStore uploads and renders profile photos
type PhotoStore interface {
	UploadPhoto(ctx context.Context, file multipart.File, userID string) (*cloudinary.UploadResult, error)
	DeletePhoto(ctx context.Context, publicID string) error
	PhotoURL(publicID string, obscurity int) (string, error)
}

type Handler struct {
	repo       store
	photos     PhotoStore
	jwtConfig  *idToken.Config
	production bool
}

func NewHandler(repo store, photos PhotoStore, jwtConfig *idToken.Config, production bool) *Handler {
	return &Handler{
		repo:       repo,
		photos:     photos,
		jwtConfig:  jwtConfig,
		production: production,
	}
}

// MeResponse is the owner's own unblurred profile
type MeResponse struct {
	User     *User  `json:"user"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

func (h *Handler) me(user *User) MeResponse {
	out := MeResponse{User: user}
	if user.PhotoPublicID != "" && h.photos != nil {
		if url, err := h.photos.PhotoURL(user.PhotoPublicID, 0); err == nil {
			out.PhotoURL = url
		}
	}
	return out
}

// DevLogin godoc
// @Summary Development login
// @Description Create or load a user by alias and issue a token. Disabled in production.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body DevLoginRequest true "Alias and optional profile basics"
// @Success 200 {object} response.SuccessResponse{data=AuthResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /auth/dev-login [post]
func (h *Handler) DevLogin(c *gin.Context) {
	if h.production {
		response.NotFound(c, "Not found", "NOT_FOUND")
		return
	}

	var req DevLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	if err := ValidateDevLogin(&req); err != nil {
		response.BadRequest(c, err.Error(), "VALIDATION_FAILED")
		return
	}

	ctx := c.Request.Context()
	user, err := h.repo.GetUserByAlias(ctx, req.Alias)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if user == nil {
		user = &User{
			Alias:  req.Alias,
			Gender: req.Gender,
			Age:    req.Age,
			City:   req.City,
		}
		if err := h.repo.CreateUser(ctx, user); err != nil {
			response.FromError(c, err)
			return
		}
		logger.Info("dev-login created user %s (%s)", user.ID.Hex(), user.Alias)
	}

	token, err := idToken.GenerateToken(user.ID.Hex(), user.Alias, h.jwtConfig)
	if err != nil {
		response.InternalServerError(c, "Failed to generate token", "TOKEN_ERROR")
		return
	}

	response.Success(c, AuthResponse{User: user, AccessToken: token})
}

// GetMe godoc
// @Summary Get own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.SuccessResponse{data=MeResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	user, ok := RequireUser(c)
	if !ok {
		return
	}
	response.Success(c, h.me(user))
}

// UpdateMe godoc
// @Summary Update own profile
// @Description Only the listed fields can be changed; omitted fields are left as they are
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileUpdate true "Fields to update"
// @Success 200 {object} response.SuccessResponse{data=MeResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /users/me [patch]
func (h *Handler) UpdateMe(c *gin.Context) {
	user, ok := RequireUser(c)
	if !ok {
		return
	}

	var req ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}
	if err := ValidateProfileUpdate(&req); err != nil {
		response.BadRequest(c, err.Error(), "VALIDATION_FAILED")
		return
	}

	updated, err := h.repo.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.me(updated))
}

// UploadPhoto godoc
// @Summary Upload profile photo
// @Description Replaces the current photo. Partners see it blurred until later unlock tiers.
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image (jpg, png, webp; max 5MB)"
// @Success 200 {object} response.SuccessResponse{data=MeResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /users/me/photo [post]
func (h *Handler) UploadPhoto(c *gin.Context) {
	user, ok := RequireUser(c)
	if !ok {
		return
	}
	if h.photos == nil {
		response.ServiceUnavailable(c, "Photo storage is not configured", "STORAGE_UNAVAILABLE")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "File is required", "FILE_REQUIRED")
		return
	}
	if err := cloudinary.ValidateImageFile(header); err != nil {
		response.BadRequest(c, err.Error(), "INVALID_FILE")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "Unable to read file", "INVALID_FILE")
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	result, err := h.photos.UploadPhoto(ctx, file, user.ID.Hex())
	if err != nil {
		logger.Error("photo upload failed for %s: %v", user.ID.Hex(), err)
		response.ServiceUnavailable(c, "Upload failed, please retry", "UPLOAD_FAILED")
		return
	}

	if err := h.repo.SetPhoto(ctx, user.ID, result.PublicID); err != nil {
		response.FromError(c, err)
		return
	}
	user.PhotoPublicID = result.PublicID
	response.Success(c, h.me(user))
}

// DeletePhoto godoc
// @Summary Remove profile photo
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.SuccessResponse{data=MeResponse}
// @Router /users/me/photo [delete]
func (h *Handler) DeletePhoto(c *gin.Context) {
	user, ok := RequireUser(c)
	if !ok {
		return
	}
	if user.PhotoPublicID == "" {
		response.Success(c, h.me(user))
		return
	}

	ctx := c.Request.Context()
	if h.photos != nil {
		if err := h.photos.DeletePhoto(ctx, user.PhotoPublicID); err != nil {
			logger.Warn("cloudinary delete of %s failed: %v", user.PhotoPublicID, err)
		}
	}
	if err := h.repo.SetPhoto(ctx, user.ID, ""); err != nil {
		response.FromError(c, err)
		return
	}
	user.PhotoPublicID = ""
	response.Success(c, h.me(user))
}
