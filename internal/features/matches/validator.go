package matches

import (
	"errors"
	"strings"

	"github.com/xyz-asif/blindmatch/internal/pkg/validator"
)

type CreateMatchRequest struct {
	PartnerID string `json:"partnerId" binding:"required"`
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type UnmatchRequest struct {
	Reason string `json:"reason"`
}

type AcceptSecretChatRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

const maxReasonLength = 200

func ValidateFilters(f *Filters) error {
	f.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
	f.City = strings.TrimSpace(f.City)

	if f.Gender != "" && !validator.IsValidGender(f.Gender) {
		return errors.New("gender must be male, female or nonbinary")
	}
	if len(f.City) > 80 {
		return errors.New("city filter must be 80 characters or less")
	}
	if f.MinAge != 0 && !validator.IsValidAge(f.MinAge) {
		return errors.New("minAge must be between 18 and 99")
	}
	if f.MaxAge != 0 && !validator.IsValidAge(f.MaxAge) {
		return errors.New("maxAge must be between 18 and 99")
	}
	if f.MinAge != 0 && f.MaxAge != 0 && f.MinAge > f.MaxAge {
		return errors.New("minAge cannot exceed maxAge")
	}
	return nil
}

func ValidateUnmatch(req *UnmatchRequest) error {
	req.Reason = strings.TrimSpace(req.Reason)
	if len(req.Reason) > maxReasonLength {
		return errors.New("reason must be 200 characters or less")
	}
	return nil
}
