package safety

import (
	"context"
	"strings"
	"time"

	"github.com/xyz-asif/blindmatch/internal/config"
	"github.com/xyz-asif/blindmatch/internal/features/matches"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const reasonBlocked = "User blocked"

type Store interface {
	Block(ctx context.Context, b *Block) (bool, error)
	Unblock(ctx context.Context, owner, target primitive.ObjectID) (bool, error)
	ListBlocked(ctx context.Context, owner primitive.ObjectID) ([]Block, error)
	CreateReport(ctx context.Context, report *Report) error
	CountRecentReports(ctx context.Context, reported primitive.ObjectID, since time.Time) (int64, error)
	UpdateReportStatus(ctx context.Context, id primitive.ObjectID, status ReportStatus, now time.Time) (*Report, error)
}

// MatchCloser ends the active match a block falls on
type MatchCloser interface {
	DeactivatePair(ctx context.Context, a, b primitive.ObjectID, status matches.Status, reason string, by primitive.ObjectID) error
}

type Directory interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*users.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*users.User, error)
}

// Banner applies temporary bans
type Banner interface {
	Ban(ctx context.Context, user primitive.ObjectID, until time.Time) error
}

type Rules struct {
	BanThreshold int
	BanWindow    time.Duration
	BanDuration  time.Duration
}

func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		BanThreshold: cfg.ReportBanThreshold,
		BanWindow:    cfg.ReportBanWindow,
		BanDuration:  cfg.ReportBanDuration,
	}
}

type Service struct {
	store     Store
	matches   MatchCloser
	directory Directory
	banner    Banner
	rules     Rules
	now       func() time.Time
}

func NewService(store Store, closer MatchCloser, directory Directory, banner Banner, rules Rules) *Service {
	return &Service{
		store:     store,
		matches:   closer,
		directory: directory,
		banner:    banner,
		rules:     rules,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Block records that owner blocked target and ends their active match.
// Blocking twice is a no-op for the relation; the cascade still runs.
func (s *Service) Block(ctx context.Context, owner, target primitive.ObjectID, reason string) (*Block, error) {
	if owner == target {
		return nil, apperr.ErrSelfBlock
	}
	if _, err := s.directory.GetUserByID(ctx, target); err != nil {
		return nil, err
	}

	b := &Block{
		OwnerID:   owner,
		BlockedID: target,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}
	created, err := s.store.Block(ctx, b)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("user %s blocked %s", owner.Hex(), target.Hex())
	}

	if err := s.matches.DeactivatePair(ctx, owner, target, matches.StatusBlocked, reasonBlocked, owner); err != nil {
		return nil, err
	}
	return b, nil
}

// Unblock removes the relation. Ended matches stay ended.
func (s *Service) Unblock(ctx context.Context, owner, target primitive.ObjectID) error {
	removed, err := s.store.Unblock(ctx, owner, target)
	if err != nil {
		return err
	}
	if removed {
		logger.Info("user %s unblocked %s", owner.Hex(), target.Hex())
	}
	return nil
}

func (s *Service) ListBlocked(ctx context.Context, owner primitive.ObjectID) ([]BlockedUser, error) {
	blocks, err := s.store.ListBlocked(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(blocks))
	for i, b := range blocks {
		ids[i] = b.BlockedID
	}
	profiles, err := s.directory.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	list := make([]BlockedUser, 0, len(blocks))
	for _, b := range blocks {
		row := BlockedUser{UserID: b.BlockedID, Reason: b.Reason, BlockedAt: b.CreatedAt}
		if u, ok := profiles[b.BlockedID]; ok {
			row.Alias = u.Alias
		}
		list = append(list, row)
	}
	return list, nil
}

type ReportInput struct {
	Reported    primitive.ObjectID
	ContentType ContentType
	ContentID   string
	Reason      string
}

// Report files a pending report and applies the automatic ban once enough
// reports against the same person fall inside the window
func (s *Service) Report(ctx context.Context, reporter primitive.ObjectID, in ReportInput) (*Report, error) {
	if reporter == in.Reported {
		return nil, apperr.InvalidArg("SELF_REPORT", "cannot report yourself")
	}
	if _, err := s.directory.GetUserByID(ctx, in.Reported); err != nil {
		return nil, err
	}

	now := s.now()
	report := &Report{
		ReporterID:  reporter,
		ReportedID:  in.Reported,
		ContentType: in.ContentType,
		ContentID:   strings.TrimSpace(in.ContentID),
		Reason:      strings.TrimSpace(in.Reason),
		Status:      ReportPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	logger.Info("report %s filed against %s (%s)", report.ID.Hex(), in.Reported.Hex(), in.ContentType)

	s.evaluateBan(ctx, in.Reported, now)
	return report, nil
}

// evaluateBan runs after the report is stored; its failures are only logged
func (s *Service) evaluateBan(ctx context.Context, reported primitive.ObjectID, now time.Time) {
	if s.banner == nil || s.rules.BanThreshold <= 0 {
		return
	}
	n, err := s.store.CountRecentReports(ctx, reported, now.Add(-s.rules.BanWindow))
	if err != nil {
		logger.Error("counting reports against %s: %v", reported.Hex(), err)
		return
	}
	if n < int64(s.rules.BanThreshold) {
		return
	}

	until := now.Add(s.rules.BanDuration)
	if err := s.banner.Ban(ctx, reported, until); err != nil {
		logger.Error("banning %s: %v", reported.Hex(), err)
		return
	}
	logger.Warn("user %s banned until %s after %d reports", reported.Hex(), until.Format(time.RFC3339), n)
}

// ReviewReport records the moderation outcome
func (s *Service) ReviewReport(ctx context.Context, id primitive.ObjectID, status ReportStatus) (*Report, error) {
	if status != ReportReviewed && status != ReportActioned {
		return nil, apperr.InvalidArg("INVALID_STATUS", "status must be reviewed or actioned")
	}
	return s.store.UpdateReportStatus(ctx, id, status, s.now())
}
