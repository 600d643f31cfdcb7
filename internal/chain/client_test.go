package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func newLedger(t *testing.T, pub notifications.Publisher) (*SimulatedLedger, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewSimulatedLedger(kvstore.NewMemoryStore(), "testnet", 30*time.Second, pub, zap.NewNop())
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestSubmitAndGet(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, nil)

	tx, err := l.Submit(ctx, KindCreditIssuance, "credit_1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.Hash, "0x"))
	assert.Len(t, tx.Hash, 66)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, "testnet", tx.Network)

	got, err := l.Get(ctx, tx.Hash)
	require.NoError(t, err)
	assert.Equal(t, "credit_1", got.Reference)

	other, err := l.Submit(ctx, KindCreditIssuance, "credit_1")
	require.NoError(t, err)
	assert.NotEqual(t, tx.Hash, other.Hash)

	_, err = l.Get(ctx, "0xmissing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = l.Submit(ctx, KindCreditIssuance, "")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestConfirmPending(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l, clock := newLedger(t, pub)

	first, err := l.Submit(ctx, KindProjectRegistration, "project_1")
	require.NoError(t, err)
	*clock = clock.Add(20 * time.Second)
	second, err := l.Submit(ctx, KindCreditRetirement, "retirement_1")
	require.NoError(t, err)

	// only the first is past the delay
	*clock = clock.Add(15 * time.Second)
	n, err := l.ConfirmPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := l.Get(ctx, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.BlockNumber)
	assert.Equal(t, int64(1), *got.BlockNumber)
	require.NotNil(t, got.ConfirmedAt)

	pending, err := l.Get(ctx, second.Hash)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)

	*clock = clock.Add(time.Minute)
	n, err = l.ConfirmPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = l.Get(ctx, second.Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *got.BlockNumber)

	// nothing left to confirm
	n, err = l.ConfirmPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, pub.events, 2)
	assert.Equal(t, notifications.EventChainConfirmed, pub.events[0].Type)
}

type countingLedger struct {
	mu    sync.Mutex
	calls int
}

func (c *countingLedger) ConfirmPending(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, nil
}

func (c *countingLedger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestConfirmer(t *testing.T) {
	ledger := &countingLedger{}
	c := NewConfirmer(ledger, "@every 1s", zap.NewNop())

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return ledger.count() > 0 }, 3*time.Second, 50*time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestConfirmer_InvalidSchedule(t *testing.T) {
	c := NewConfirmer(&countingLedger{}, "not a schedule", zap.NewNop())
	assert.Error(t, c.Start(context.Background()))
}

func TestHandler_GetTransaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	l, _ := newLedger(t, nil)
	tx, err := l.Submit(ctx, KindCreditIssuance, "credit_9")
	require.NoError(t, err)

	router := gin.New()
	NewHandler(l, zap.NewNop()).RegisterRoutes(router.Group(""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/"+tx.Hash, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reference":"credit_9"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/0xnope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Transaction not found"}`, w.Body.String())
}
