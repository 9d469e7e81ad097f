package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/storage"
)

// ExportService re-enqueues expenses that never made it to the spreadsheet.
type ExportService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	batchSize  int
}

func NewExportService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, batchSize int) *ExportService {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportService{
		storage:    storage,
		amqpClient: amqpClient,
		batchSize:  batchSize,
	}
}

// EnqueueUnsynced publishes a sync message for every unsynced expense of the
// user, up to the batch size. It returns the number of messages published.
func (s *ExportService) EnqueueUnsynced(ctx context.Context, userID int64) (int, error) {
	if s.amqpClient == nil {
		return 0, fmt.Errorf("sync queue not available")
	}

	ids, err := s.storage.ListUnsyncedExpenseIDs(ctx, userID, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced expenses: %w", err)
	}

	published := 0
	for _, id := range ids {
		if err := s.amqpClient.PublishExpenseSync(ctx, id, 1); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"id", id, "error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Enqueued unsynced expenses",
		"user_id", userID,
		"published", published,
		"total", len(ids))

	return published, nil
}
