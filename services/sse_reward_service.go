// kodata-dao/services/sse_reward_service.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"kodata-dao/middleware"
	"kodata-dao/models"
)

// StreamRewards streams the authenticated user's new token transfers as
// server-sent events. The frontend listens here to show "reward landed"
// toasts without polling.
func (s *RewardService) StreamRewards(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	db := s.DB
	ctx := c.Context()

	// Use fasthttp stream writer (this replaces Flush)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		// Initialize cursor so only transfers created after connect stream out.
		var latest models.TokenTransfer
		if err := db.
			Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var transfers []models.TokenTransfer

				err := db.
					Where("user_id = ?", userID).
					Where("created_at > ?", lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&transfers).Error
				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(transfers) == 0 {
					continue
				}

				lastMaxCreatedAt = transfers[len(transfers)-1].CreatedAt

				for _, t := range transfers {
					payload, _ := json.Marshal(t)
					fmt.Fprintf(w, "event: transfer\ndata: %s\n\n", payload)
				}

				// This is the real "flush"
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-ctx.Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
