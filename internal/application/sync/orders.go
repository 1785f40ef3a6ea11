package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// maxPullPages bounds one polling pass so a runaway cursor cannot spin forever
const maxPullPages = 100

// PullReport summarizes one order polling pass for one marketplace
type PullReport struct {
	MarketplaceCode integration.MarketplaceCode `json:"marketplace_code"`
	Pages           int                         `json:"pages"`
	Orders          int                         `json:"orders"`
	Imported        int                         `json:"imported"`
	Failed          int                         `json:"failed"`
}

// PullOrders polls the marketplace order listing since the given time and
// imports each order into the catalog. Polling is the webhook fallback: the
// same orders may arrive both ways, so imports rely on the catalog's
// idempotent ApplyRemoteOrder. Each page consumes one rate-limit token.
func (s *Service) PullOrders(ctx context.Context, code integration.MarketplaceCode, since time.Time) (*PullReport, error) {
	adapter, err := s.adapters.Get(code)
	if err != nil {
		return nil, err
	}

	report := &PullReport{MarketplaceCode: code}
	bucket := s.limiter.Bucket(code)

	cursor := ""
	for page := 0; page < maxPullPages; page++ {
		if err := bucket.Acquire(ctx); err != nil {
			return report, err
		}

		listCtx, cancel := context.WithTimeout(ctx, s.opts.PushTimeout)
		orders, listErr := adapter.ListOrders(listCtx, since, cursor)
		cancel()
		if listErr != nil {
			if after, ok := integration.RetryAfterOf(listErr); ok {
				bucket.Penalize(after)
			}
			return report, listErr
		}

		report.Pages++
		report.Orders += len(orders.Orders)
		for i := range orders.Orders {
			if err := s.importOrder(ctx, code, &orders.Orders[i]); err != nil {
				report.Failed++
				s.logger.Error("importing pulled order",
					zap.String("marketplace", code.String()),
					zap.String("external_order_id", orders.Orders[i].ExternalOrderID),
					zap.Error(err))
				continue
			}
			report.Imported++
		}

		if !orders.HasMore {
			break
		}
		cursor = orders.NextCursor
	}

	s.logger.Info("order pull completed",
		zap.String("marketplace", code.String()),
		zap.Int("pages", report.Pages),
		zap.Int("orders", report.Orders),
		zap.Int("imported", report.Imported),
		zap.Int("failed", report.Failed))
	return report, nil
}

// importOrder records one pulled order and its mapping
func (s *Service) importOrder(ctx context.Context, code integration.MarketplaceCode, order *integration.RawOrder) error {
	orderID, err := s.catalog.ApplyRemoteOrder(ctx, order)
	if err != nil {
		return err
	}

	mapping, err := integration.NewMapping(orderID, integration.EntityTypeOrder, code)
	if err != nil {
		return err
	}
	if err := mapping.LinkExternal(order.ExternalOrderID); err != nil {
		return err
	}
	mapping.MarkSynced(0)

	err = s.mappings.Create(ctx, mapping)
	if errors.Is(err, shared.ErrAlreadyExists) {
		return nil
	}
	return err
}
