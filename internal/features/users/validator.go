package users

import (
	"errors"
	"strings"

	"github.com/xyz-asif/blindmatch/internal/pkg/validator"
)

func ValidateProfileUpdate(req *ProfileUpdate) error {
	if req.IsEmpty() {
		return errors.New("no fields to update")
	}
	if req.Alias != nil {
		*req.Alias = strings.TrimSpace(*req.Alias)
		if !validator.IsValidAlias(*req.Alias) {
			return errors.New("alias must be 3-30 letters, digits, spaces, '-' or '_'")
		}
	}
	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
		if !validator.IsValidName(*req.Name) {
			return errors.New("name must be 2-50 letters")
		}
	}
	if req.Gender != nil {
		*req.Gender = strings.ToLower(strings.TrimSpace(*req.Gender))
		if !validator.IsValidGender(*req.Gender) {
			return errors.New("gender must be male, female or nonbinary")
		}
	}
	if req.Age != nil && !validator.IsValidAge(*req.Age) {
		return errors.New("age must be between 18 and 99")
	}
	if req.City != nil {
		*req.City = strings.TrimSpace(*req.City)
		if len(*req.City) > 80 {
			return errors.New("city must be 80 characters or less")
		}
	}
	if req.Bio != nil {
		*req.Bio = strings.TrimSpace(*req.Bio)
		if !validator.IsValidBio(*req.Bio) {
			return errors.New("bio must be 300 characters or less")
		}
	}
	if req.Interests != nil && !validator.AreValidInterests(*req.Interests) {
		return errors.New("up to 10 interests of at most 30 characters each")
	}
	return nil
}

func ValidateDevLogin(req *DevLoginRequest) error {
	req.Alias = strings.TrimSpace(req.Alias)
	if !validator.IsValidAlias(req.Alias) {
		return errors.New("alias must be 3-30 letters, digits, spaces, '-' or '_'")
	}
	if req.Gender != "" {
		req.Gender = strings.ToLower(req.Gender)
		if !validator.IsValidGender(req.Gender) {
			return errors.New("gender must be male, female or nonbinary")
		}
	}
	if req.Age != 0 && !validator.IsValidAge(req.Age) {
		return errors.New("age must be between 18 and 99")
	}
	return nil
}
