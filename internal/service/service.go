// Package service implements the assistant's dialogue orchestration: the
// scheduling workflow, the tool-gated chat workflow, and the aggregation
// of their results into one response envelope.
package service

import (
	"time"

	"github.com/tuht/evsc-assistant/internal/adapter/dispatch"
	"github.com/tuht/evsc-assistant/internal/adapter/genai"
	"github.com/tuht/evsc-assistant/internal/config"
	"github.com/tuht/evsc-assistant/internal/conversation"
	"github.com/tuht/evsc-assistant/internal/forecast"
	"github.com/tuht/evsc-assistant/internal/policy"
	"github.com/tuht/evsc-assistant/internal/store"
)

type Service struct {
	store         store.Store
	genaiClient   genai.Client
	dispatch      *dispatch.Client
	policyEngine  *policy.Engine
	forecaster    *forecast.Engine
	conversations *conversation.Store
	config        *config.Config
	now           func() time.Time
}

func New(st store.Store, genaiClient genai.Client, dispatchClient *dispatch.Client, policyEngine *policy.Engine, forecaster *forecast.Engine, conversations *conversation.Store, cfg *config.Config) *Service {
	return &Service{
		store:         st,
		genaiClient:   genaiClient,
		dispatch:      dispatchClient,
		policyEngine:  policyEngine,
		forecaster:    forecaster,
		conversations: conversations,
		config:        cfg,
		now:           time.Now,
	}
}

// Conversations exposes the conversation store to the transports.
func (s *Service) Conversations() *conversation.Store {
	return s.conversations
}
