// kodata-dao/services/status_service.go
package services

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"kodata-dao/chain"
)

// QueueReporter exposes the relayer backlog for the status endpoint.
type QueueReporter interface {
	QueueDepth() int
}

// StatusService answers /api/health and /api/blockchain/status.
type StatusService struct {
	DB         *gorm.DB
	Starknet   chain.StarknetClient
	Reputation chain.ReputationClient
	Relayer    QueueReporter

	startedAt time.Time
}

func NewStatusService(db *gorm.DB, starknet chain.StarknetClient, reputation chain.ReputationClient, relayer QueueReporter) *StatusService {
	return &StatusService{
		DB:         db,
		Starknet:   starknet,
		Reputation: reputation,
		Relayer:    relayer,
		startedAt:  time.Now(),
	}
}

// Health reports process uptime and database reachability.
func (s *StatusService) Health(c *fiber.Ctx) error {
	database := "up"
	if sqlDB, err := s.DB.DB(); err != nil || sqlDB.Ping() != nil {
		database = "down"
	}

	status := fiber.StatusOK
	if database == "down" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":         "ok",
		"database":       database,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// BlockchainStatus probes both chains in parallel and reports reachability,
// chain ids and head blocks alongside the relayer backlog.
func (s *StatusService) BlockchainStatus(c *fiber.Ctx) error {
	ctx := c.Context()

	var wg sync.WaitGroup
	var starknetStatus, liskStatus chain.Status

	wg.Add(2)
	go func() {
		defer wg.Done()
		starknetStatus = s.Starknet.ChainStatus(ctx)
	}()
	go func() {
		defer wg.Done()
		liskStatus = s.Reputation.ChainStatus(ctx)
	}()
	wg.Wait()

	return c.JSON(fiber.Map{
		"starknet":     starknetStatus,
		"lisk_sepolia": liskStatus,
		"relayer": fiber.Map{
			"queue_depth": s.Relayer.QueueDepth(),
		},
		"checked_at": time.Now().UTC(),
	})
}
