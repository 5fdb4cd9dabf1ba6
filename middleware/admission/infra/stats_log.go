package infra

import (
	"context"

	"admission-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// LogStatsStore escreve uma linha estruturada por decisão de admissão.
// Requisições admitidas saem em Info; rejeições em Warn.
type LogStatsStore struct {
	log *zap.Logger
}

func NewLogStatsStore(log *zap.Logger) *LogStatsStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogStatsStore{log: log.Named("admission")}
}

func (s *LogStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	fields := []zap.Field{
		zap.String("request_id", ev.RequestID),
		zap.String("client_key", string(ev.Key)),
		zap.String("method", ev.Method),
		zap.String("path", ev.Path),
		zap.String("outcome", string(ev.Outcome)),
		zap.Duration("duration", ev.Duration),
	}
	if ev.Service != "" {
		fields = append(fields, zap.String("service", ev.Service))
	}
	if ev.Subject != "" {
		fields = append(fields, zap.String("subject", ev.Subject))
	}

	if ev.Allowed() {
		s.log.Info("request admitted", fields...)
	} else {
		s.log.Warn("request rejected", fields...)
	}
	return nil
}
