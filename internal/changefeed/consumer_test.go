package changefeed

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	invalidated []string
	err         error
}

func (r *recordingCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (r *recordingCache) Patch(context.Context, string, any) error       { return nil }

func (r *recordingCache) Invalidate(_ context.Context, keys ...string) error {
	if r.err != nil {
		return r.err
	}
	r.invalidated = append(r.invalidated, keys...)
	return nil
}

func newTestConsumer(c cache.Cache) *Consumer {
	return &Consumer{cache: c, metrics: metrics.NewChangefeedMetrics(nil), logg: logger.Nop()}
}

func buildMessage(table, kind string, body string) *pubsub.Message {
	return &pubsub.Message{
		ID:         "m-1",
		Attributes: map[string]string{attrTable: table, attrChangeKind: kind},
		Data:       []byte(body),
	}
}

func TestProcessInvalidatesEntityKeys(t *testing.T) {
	id := uuid.New()
	for table, key := range map[string]string{
		TableOrders:   cache.OrderKey(id),
		TableBills:    cache.BillKey(id),
		TableAccounts: cache.AccountKey(id),
	} {
		t.Run(table, func(t *testing.T) {
			c := &recordingCache{}
			res := newTestConsumer(c).process(context.Background(), buildMessage(table, "update", `{"id":"`+id.String()+`","paid_amount":"10"}`))
			assert.False(t, res.nack)
			assert.Equal(t, []string{key}, c.invalidated)
		})
	}
}

func TestProcessAcceptsBase64Body(t *testing.T) {
	id := uuid.New()
	c := &recordingCache{}
	body := base64.StdEncoding.EncodeToString([]byte(`{"id":"` + id.String() + `"}`))

	res := newTestConsumer(c).process(context.Background(), buildMessage("ORDERS", "delete", body))
	assert.False(t, res.nack)
	assert.Equal(t, []string{cache.OrderKey(id)}, c.invalidated)
}

func TestProcessTransactionsNeedNoCacheWork(t *testing.T) {
	c := &recordingCache{}
	res := newTestConsumer(c).process(context.Background(), buildMessage(TableTransactions, "insert", `{"id":"`+uuid.NewString()+`"}`))
	assert.False(t, res.nack)
	assert.Empty(t, c.invalidated)
}

func TestProcessAcksMalformedMessages(t *testing.T) {
	cases := map[string]*pubsub.Message{
		"unknown kind":  buildMessage(TableOrders, "upsert", `{"id":"`+uuid.NewString()+`"}`),
		"unknown table": buildMessage("products", "update", `{"id":"`+uuid.NewString()+`"}`),
		"bad json":      buildMessage(TableBills, "update", `{"id":`),
		"bad id":        buildMessage(TableBills, "update", `{"id":"nope"}`),
		"empty body":    buildMessage(TableAccounts, "insert", ""),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			c := &recordingCache{}
			res := newTestConsumer(c).process(context.Background(), msg)
			assert.False(t, res.nack)
			assert.Empty(t, c.invalidated)
		})
	}
}

func TestProcessNacksCacheFailure(t *testing.T) {
	c := &recordingCache{err: errors.New("redis down")}
	res := newTestConsumer(c).process(context.Background(), buildMessage(TableOrders, "update", `{"id":"`+uuid.NewString()+`"}`))
	assert.True(t, res.nack)
}

func TestProcessCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	consumer := newTestConsumer(&recordingCache{})
	consumer.metrics = metrics.NewChangefeedMetrics(reg)

	consumer.process(context.Background(), buildMessage(TableOrders, "update", `{"id":"`+uuid.NewString()+`"}`))
	consumer.process(context.Background(), buildMessage(TableOrders, "update", `garbage`))

	count, err := testutil.GatherAndCount(reg, "changefeed_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(nil, &pubsub.Subscriber{}, nil, logger.Nop())
	assert.Error(t, err)
	_, err = NewConsumer(&recordingCache{}, nil, nil, logger.Nop())
	assert.Error(t, err)
}
