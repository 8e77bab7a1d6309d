package service

import (
	"time"

	"github.com/arcadenet/netplay/internal/config"
	"github.com/arcadenet/netplay/internal/repository"
	"github.com/rs/zerolog"
)

type Services struct {
	Session *SessionService
}

func NewServices(repos *repository.Repositories, signalingClient SignalingClient, cfg *config.Config, logger zerolog.Logger) *Services {
	codes := NewCodeAllocator(cfg.CodeLength, cfg.CodeAlphabet, nil, repos.Session)
	return &Services{
		Session: NewSessionService(repos.Session, repos.Participant, codes, signalingClient, cfg, logger, time.Now),
	}
}
