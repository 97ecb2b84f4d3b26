package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypePriceHistory identifies the task appending a price observation
// to the history table.
const TypePriceHistory = "price:history"

// PriceHistoryPayload is the wire format for history append tasks.
type PriceHistoryPayload struct {
	ProductID  int64     `json:"product_id"`
	StoreID    int64     `json:"store_id"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Enqueuer dispatches background tasks through asynq.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueuePriceHistory queues a history append for a recorded price.
func (e Enqueuer) EnqueuePriceHistory(ctx context.Context, productID, storeID int64, price float64, currency string, recordedAt time.Time) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(PriceHistoryPayload{
		ProductID:  productID,
		StoreID:    storeID,
		Price:      price,
		Currency:   currency,
		RecordedAt: recordedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal history payload: %w", err)
	}
	task := asynq.NewTask(TypePriceHistory, payload)
	_, err = e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return err
}

// HistoryWriter persists history entries.
type HistoryWriter interface {
	InsertPriceHistory(ctx context.Context, productID, storeID int64, price float64, currency string, recordedAt time.Time) error
}

// NewPriceHistoryHandler returns the asynq handler for history tasks.
func NewPriceHistoryHandler(store HistoryWriter, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload PriceHistoryPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// malformed payloads will never succeed, skip retries
			logger.Error().Err(err).Msg("unmarshal history payload")
			return fmt.Errorf("unmarshal history payload: %w: %w", err, asynq.SkipRetry)
		}
		if err := store.InsertPriceHistory(ctx, payload.ProductID, payload.StoreID, payload.Price, payload.Currency, payload.RecordedAt); err != nil {
			return fmt.Errorf("insert price history: %w", err)
		}
		logger.Debug().
			Int64("product_id", payload.ProductID).
			Int64("store_id", payload.StoreID).
			Float64("price", payload.Price).
			Msg("price history recorded")
		return nil
	}
}
