package errors

var (
	ErrUserNotFound  = NotFound("USER_NOT_FOUND", "user not found")
	ErrMatchNotFound = NotFound("MATCH_NOT_FOUND", "match not found")
	ErrReportMissing = NotFound("REPORT_NOT_FOUND", "report not found")

	ErrSelfMatch       = PreconditionFailed("SELF_MATCH", "cannot match with yourself")
	ErrAlreadyMatched  = PreconditionFailed("ALREADY_MATCHED", "an active match already exists between these users")
	ErrBlocked         = PreconditionFailed("BLOCKED", "one of the users has blocked the other")
	ErrDailyLimit      = PreconditionFailed("DAILY_LIMIT", "daily match limit reached")
	ErrNoCandidates    = PreconditionFailed("NO_CANDIDATES", "no eligible candidates right now")
	ErrMatchInactive   = PreconditionFailed("MATCH_INACTIVE", "match is no longer active")
	ErrNotParticipant  = PreconditionFailed("NOT_PARTICIPANT", "user is not a participant of this match")
	ErrInvalidDuration = PreconditionFailed("INVALID_DURATION", "secret chat duration is invalid")
	ErrNoSecretRequest = PreconditionFailed("NO_SECRET_REQUEST", "no pending secret chat request")
	ErrUserBanned      = PreconditionFailed("USER_BANNED", "user is temporarily banned")
	ErrNotEnoughPoints = PreconditionFailed("NOT_ENOUGH_POINTS", "not enough points")

	ErrContentRejected = ValidationRejected("CONTENT_REJECTED", "message rejected by moderation")

	ErrInvalidID    = InvalidArg("INVALID_ID", "invalid id")
	ErrSelfBlock    = InvalidArg("SELF_BLOCK", "cannot block yourself")
	ErrEmptyMessage = InvalidArg("EMPTY_MESSAGE", "message content is required")
)

// ErrContentRejectedBecause keeps the moderation reason next to the sentinel code.
func ErrContentRejectedBecause(reason string) error {
	return Wrap(KindValidationRejected, "CONTENT_REJECTED", "message rejected by moderation", New(KindValidationRejected, "", reason))
}
