package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/validate"
)

// DefaultModel is the language model new assistants run on.
const DefaultModel = "gpt-4o"

// DefaultPrompt is the system prompt of a new assistant until the presenter edits it.
const DefaultPrompt = `You are a friendly sales assistant calling an attendee who just watched a live webinar.
Find out what they hope to achieve, answer questions about the offer honestly and keep replies short.
When they are ready, walk them through purchasing. Never invent prices or discounts.`

// CreateInput is the body for POST /agents.
type CreateInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// UpdateInput is the body for PUT /agents/:id.
type UpdateInput struct {
	FirstMessage string `json:"first_message" validate:"required,max=1000"`
	Prompt       string `json:"prompt" validate:"required,max=20000"`
}

// Store persists agents.
type Store interface {
	Create(ctx context.Context, a *models.AIAgent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AIAgent, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AIAgent, error)
	UpdateScript(ctx context.Context, id uuid.UUID, firstMessage, prompt string) error
}

// Assistants manages assistants on the voice provider.
type Assistants interface {
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
	UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error
}

// Service creates and edits AI agents.
type Service struct {
	store      Store
	assistants Assistants
	logger     *zap.Logger
}

// NewService creates an agents service.
func NewService(store Store, assistants Assistants, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, assistants: assistants, logger: logger}
}

// Create registers an assistant with the provider and stores it for userID.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.AIAgent, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	spec := AssistantSpec{
		Name:         in.Name,
		FirstMessage: fmt.Sprintf("Hi there, this is %s from customer support. How can I help you today?", in.Name),
		Prompt:       DefaultPrompt,
		Model:        DefaultModel,
	}
	assistantID, err := s.assistants.CreateAssistant(ctx, spec)
	if err != nil {
		return nil, apperrors.Provisioning(apperrors.CodeProvisioningFailed, "Failed to create agent", err)
	}
	a := &models.AIAgent{
		UserID:       userID,
		Name:         spec.Name,
		Prompt:       spec.Prompt,
		FirstMessage: spec.FirstMessage,
		Model:        spec.Model,
		AssistantID:  assistantID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agent created", zap.String("agent_id", a.ID.String()), zap.String("assistant_id", assistantID))
	return a, nil
}

// List returns the agents of userID.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.AIAgent, error) {
	return s.store.ListByUser(ctx, userID)
}

// UpdateScript changes what the agent says, remotely first.
func (s *Service) UpdateScript(ctx context.Context, userID, agentID uuid.UUID, in UpdateInput) (*models.AIAgent, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	a, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NotFound("agent")
	}
	if a.UserID != userID {
		return nil, apperrors.Unauthorized()
	}
	spec := AssistantSpec{FirstMessage: in.FirstMessage, Prompt: in.Prompt, Model: a.Model}
	if err := s.assistants.UpdateAssistant(ctx, a.AssistantID, spec); err != nil {
		return nil, apperrors.Provisioning(apperrors.CodeProvisioningFailed, "Failed to update agent", err)
	}
	if err := s.store.UpdateScript(ctx, a.ID, in.FirstMessage, in.Prompt); err != nil {
		return nil, err
	}
	a.FirstMessage, a.Prompt = in.FirstMessage, in.Prompt
	return a, nil
}
