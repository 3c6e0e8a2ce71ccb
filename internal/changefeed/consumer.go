package changefeed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Message attributes carried by every change notification.
const (
	attrTable      = "table"
	attrChangeKind = "change_kind"
)

// Tables the feed reports on.
const (
	TableOrders       = "orders"
	TableBills        = "bills"
	TableAccounts     = "accounts"
	TableTransactions = "transactions"
)

// Processing results used as metric labels.
const (
	resultInvalidated = "invalidated"
	resultIgnored     = "ignored"
	resultMalformed   = "malformed"
	resultRetry       = "retry"
)

var cacheKeyByTable = map[string]func(uuid.UUID) string{
	TableOrders:   cache.OrderKey,
	TableBills:    cache.BillKey,
	TableAccounts: cache.AccountKey,
}

// Consumer turns row change notifications from other sessions into cache
// invalidations. Events never drive business logic.
type Consumer struct {
	cache        cache.Cache
	subscription *pubsub.Subscriber
	metrics      *metrics.ChangefeedMetrics
	logg         *logger.Logger
}

// NewConsumer wires the consumer to the changes subscription. m may be nil.
func NewConsumer(c cache.Cache, subscription *pubsub.Subscriber, m *metrics.ChangefeedMetrics, logg *logger.Logger) (*Consumer, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if subscription == nil {
		return nil, errors.New("changes subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{cache: c, subscription: subscription, metrics: m, logg: logg}, nil
}

// Run processes notifications until the context is canceled or the
// subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

type rowPayload struct {
	ID string `json:"id"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	table := strings.ToLower(strings.TrimSpace(msg.Attributes[attrTable]))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":  msg.ID,
		"table":       table,
		"change_kind": msg.Attributes[attrChangeKind],
	})

	kind, err := enums.ParseChangeKind(msg.Attributes[attrChangeKind])
	if err != nil {
		return c.drop(logCtx, table, "change notification has an unknown change kind", err)
	}

	if table == TableTransactions {
		c.logg.Debug(logCtx, "transaction change needs no cache work")
		c.metrics.IncMessage(table, resultIgnored)
		return processResult{}
	}
	keyFor, ok := cacheKeyByTable[table]
	if !ok {
		return c.drop(logCtx, table, "change notification for an unknown table", fmt.Errorf("table %q", table))
	}

	id, err := decodeRowID(msg.Data)
	if err != nil {
		return c.drop(logCtx, table, "change notification row is unreadable", err)
	}

	key := keyFor(id)
	logCtx = c.logg.WithFields(logCtx, map[string]any{"cache_key": key, "row_id": id.String()})
	if err := c.cache.Invalidate(logCtx, key); err != nil {
		c.logg.Error(logCtx, "cache invalidation failed, redelivering", err)
		c.metrics.IncMessage(table, resultRetry)
		return processResult{nack: true}
	}

	c.metrics.IncMessage(table, resultInvalidated)
	c.logg.Debug(logCtx, "invalidated cache after "+kind.String())
	return processResult{}
}

// drop acknowledges a message that can never be processed.
func (c *Consumer) drop(ctx context.Context, table, msg string, err error) processResult {
	c.logg.Error(ctx, msg, err)
	c.metrics.IncMessage(table, resultMalformed)
	return processResult{}
}

// decodeRowID reads the row id from a JSON body, which may be base64 encoded.
func decodeRowID(data []byte) (uuid.UUID, error) {
	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		return uuid.Nil, errors.New("empty payload")
	}
	if payload[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			return uuid.Nil, fmt.Errorf("decode payload: %w", err)
		}
		payload = decoded
	}

	var row rowPayload
	if err := json.Unmarshal(payload, &row); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("row id: %w", err)
	}
	return id, nil
}
