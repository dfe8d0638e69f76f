package services

import (
	"context"
	"fmt"
	"time"

	"github.com/afrisend/comms-gateway/pkg/pg"
	"github.com/afrisend/comms-gateway/pkg/redis"
)

// HealthService probes the gateway's hard dependencies. A failing probe
// flips the /health endpoint so the load balancer can drain the node.
type HealthService struct {
	db    *pg.DB
	redis redis.RedisAdapter
}

func NewHealthService(db *pg.DB, rds redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, redis: rds}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Read(ctx).Exec("SELECT 1").Error; err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Client().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
