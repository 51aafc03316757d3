package cloudinary

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlurTransformation(t *testing.T) {
	require.Equal(t, "", BlurTransformation(0))
	require.Equal(t, "e_blur:500", BlurTransformation(25))
	require.Equal(t, "e_blur:1000", BlurTransformation(50))
	require.Equal(t, "e_blur:2000", BlurTransformation(150))
}

func TestPhotoURL(t *testing.T) {
	svc, err := NewService("demo", "key", "secret", "")
	require.NoError(t, err)

	blurred, err := svc.PhotoURL("blindmatch/profiles/u1", 50)
	require.NoError(t, err)
	require.Contains(t, blurred, "e_blur:1000")
	require.Contains(t, blurred, "blindmatch/profiles/u1")

	plain, err := svc.PhotoURL("blindmatch/profiles/u1", 0)
	require.NoError(t, err)
	require.NotContains(t, plain, "e_blur")

	_, err = svc.PhotoURL("", 10)
	require.Error(t, err)
}

func TestNewServiceRequiresCredentials(t *testing.T) {
	_, err := NewService("", "key", "secret", "")
	require.Error(t, err)
}

func TestValidateImageFile(t *testing.T) {
	require.NoError(t, ValidateImageFile(&multipart.FileHeader{Filename: "me.JPG", Size: 1024}))
	require.Error(t, ValidateImageFile(&multipart.FileHeader{Filename: "me.gif", Size: 1024}))
	require.Error(t, ValidateImageFile(&multipart.FileHeader{Filename: "me.png", Size: MaxImageSize + 1}))
}
