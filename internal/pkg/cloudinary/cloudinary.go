package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Service handles profile photo storage and obscured delivery URLs
type Service struct {
	cld          *cloudinary.Cloudinary
	uploadFolder string
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	URL      string
	PublicID string
	Width    int
	Height   int
	FileSize int64
	Format   string
}

// File validation constants
var (
	AllowedImageTypes = []string{".jpg", ".jpeg", ".png", ".webp"}

	MaxImageSize = int64(10 * 1024 * 1024) // 10MB
)

// maxBlur is Cloudinary's strongest e_blur strength
const maxBlur = 2000

// NewService creates a new Cloudinary service instance
func NewService(cloudName, apiKey, apiSecret, uploadFolder string) (*Service, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are required")
	}

	// Build Cloudinary URL
	cloudinaryURL := fmt.Sprintf("cloudinary://%s:%s@%s", apiKey, apiSecret, cloudName)

	// Initialize Cloudinary client
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	if uploadFolder == "" {
		uploadFolder = "blindmatch"
	}

	return &Service{
		cld:          cld,
		uploadFolder: uploadFolder,
	}, nil
}

// UploadPhoto uploads a profile photo for userID, replacing any previous one
func (s *Service) UploadPhoto(ctx context.Context, file multipart.File, userID string) (*UploadResult, error) {
	overwrite := true
	uploadParams := uploader.UploadParams{
		Folder:       s.uploadFolder + "/profiles",
		PublicID:     userID,
		Overwrite:    &overwrite,
		ResourceType: "image",
	}

	result, err := s.cld.Upload.Upload(ctx, file, uploadParams)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	return &UploadResult{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Width:    result.Width,
		Height:   result.Height,
		FileSize: int64(result.Bytes),
		Format:   result.Format,
	}, nil
}

// DeletePhoto removes a profile photo from Cloudinary
func (s *Service) DeletePhoto(ctx context.Context, publicID string) error {
	if publicID == "" {
		return errors.New("publicID is required")
	}

	destroyParams := uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
	}

	_, err := s.cld.Upload.Destroy(ctx, destroyParams)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	return nil
}

// PhotoURL returns a delivery URL for publicID blurred in proportion to
// obscurity (0 = clear, 100 = fully hidden).
func (s *Service) PhotoURL(publicID string, obscurity int) (string, error) {
	if publicID == "" {
		return "", errors.New("publicID is required")
	}

	img, err := s.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("failed to build image url: %w", err)
	}
	img.Config.URL.Secure = true
	img.Transformation = BlurTransformation(obscurity)

	return img.String()
}

// BlurTransformation converts an obscurity percentage into a Cloudinary
// transformation string. An empty string means no transformation.
func BlurTransformation(obscurity int) string {
	if obscurity <= 0 {
		return ""
	}
	if obscurity > 100 {
		obscurity = 100
	}
	return fmt.Sprintf("e_blur:%d", obscurity*maxBlur/100)
}

// ValidateImageFile validates an image file upload
func ValidateImageFile(header *multipart.FileHeader) error {
	// Check file size
	if header.Size > MaxImageSize {
		return fmt.Errorf("image file size exceeds maximum allowed size of %d MB", MaxImageSize/(1024*1024))
	}

	// Check file extension
	ext := getFileExtension(header.Filename)
	if !isAllowedExtension(ext, AllowedImageTypes) {
		return fmt.Errorf("invalid image file type: %s. Allowed types: %s", ext, strings.Join(AllowedImageTypes, ", "))
	}

	return nil
}

// getFileExtension returns the lowercase file extension including the dot
func getFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(ext)
}

// isAllowedExtension checks if the extension is in the allowed list
func isAllowedExtension(ext string, allowedTypes []string) bool {
	for _, allowed := range allowedTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}
