package webinars

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/validate"
)

// CreateInput is the body for POST /webinars.
type CreateInput struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   string         `json:"description" validate:"max=5000"`
	StartTime     *time.Time     `json:"start_time" validate:"required_unless=Instant true"`
	Tags          []string       `json:"tags" validate:"max=20,dive,max=50"`
	CtaLabel      string         `json:"cta_label" validate:"required,max=50"`
	CtaType       models.CtaType `json:"cta_type" validate:"required,oneof=BOOK_A_CALL BUY_NOW"`
	AIAgentID     *uuid.UUID     `json:"ai_agent_id" validate:"required_if=CtaType BOOK_A_CALL"`
	PriceID       *string        `json:"price_id"`
	LockChat      bool           `json:"lock_chat"`
	CouponEnabled bool           `json:"coupon_enabled"`
	CouponCode    *string        `json:"coupon_code" validate:"omitempty,max=40"`
	Instant       bool           `json:"instant"`
}

// AgentOwnership answers whether an AI agent belongs to a presenter.
type AgentOwnership interface {
	OwnedBy(ctx context.Context, agentID, userID uuid.UUID) (bool, error)
}

// Creator persists new webinars.
type Creator interface {
	Create(ctx context.Context, w *models.Webinar) error
}

// Service creates webinars and optionally starts them straight away.
type Service struct {
	repo      Creator
	agents    AgentOwnership
	lifecycle *Lifecycle
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a webinar service.
func NewService(repo Creator, agents AgentOwnership, lifecycle *Lifecycle, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, agents: agents, lifecycle: lifecycle, now: time.Now, logger: logger}
}

// Create validates in and stores a SCHEDULED webinar for presenterID. Instant webinars
// start at the current time and go live immediately.
func (s *Service) Create(ctx context.Context, presenterID uuid.UUID, in CreateInput) (*models.Webinar, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.CtaLabel = strings.TrimSpace(in.CtaLabel)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	start := now
	if !in.Instant {
		start = *in.StartTime
		if start.Before(now) {
			return nil, apperrors.Validation("Please check the highlighted fields",
				map[string]string{"start_time": "cannot be in the past"})
		}
	}

	if in.CtaType == models.CtaTypeBookACall {
		owned, err := s.agents.OwnedBy(ctx, *in.AIAgentID, presenterID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, apperrors.Validation("Please check the highlighted fields",
				map[string]string{"ai_agent_id": "must reference one of your agents"})
		}
	} else {
		in.AIAgentID = nil
	}

	var coupon *string
	if in.CouponEnabled {
		if in.CouponCode == nil || strings.TrimSpace(*in.CouponCode) == "" {
			return nil, apperrors.Validation("Please check the highlighted fields",
				map[string]string{"coupon_code": "is required when the coupon is enabled"})
		}
		code := strings.TrimSpace(*in.CouponCode)
		coupon = &code
	}

	w := &models.Webinar{
		PresenterID:   presenterID,
		Title:         in.Title,
		Description:   in.Description,
		StartTime:     start,
		Status:        models.WebinarStatusScheduled,
		CtaType:       in.CtaType,
		CtaLabel:      in.CtaLabel,
		Tags:          normalizeTags(in.Tags),
		AIAgentID:     in.AIAgentID,
		PriceID:       in.PriceID,
		LockChat:      in.LockChat,
		CouponCode:    coupon,
		CouponEnabled: in.CouponEnabled,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("webinar created", zap.String("webinar_id", w.ID.String()), zap.String("presenter_id", presenterID.String()), zap.Bool("instant", in.Instant))

	if !in.Instant {
		return w, nil
	}
	live, err := s.lifecycle.Start(ctx, w)
	if err != nil {
		if e, ok := apperrors.As(err); ok {
			if e.Metadata == nil {
				e.Metadata = map[string]string{}
			}
			e.Metadata["webinar_id"] = w.ID.String()
		}
		return nil, err
	}
	return live, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
