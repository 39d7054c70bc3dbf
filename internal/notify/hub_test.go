package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"referral_platform/internal/model"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed    chan struct{}
	closeOnce sync.Once
	written   chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		closed:  make(chan struct{}),
		written: make(chan []byte, 8),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("connection closed")
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.written <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.hangUp()
	return nil
}

func (c *fakeConn) hangUp() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHub_NotifyCommission(t *testing.T) {
	hub := NewHub()
	earner := newFakeConn()
	other := newFakeConn()

	go hub.Serve("earner", earner)
	go hub.Serve("other", other)
	waitFor(t, func() bool { return hub.Connections("earner") == 1 && hub.Connections("other") == 1 })

	hub.NotifyCommission(&model.ReferralCommission{
		ID:         "c1",
		FromUserID: "payer",
		ToUserID:   "earner",
		PaymentID:  "p1",
		Level:      2,
		Amount:     decimal.RequireFromString("50"),
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	select {
	case data := <-earner.written:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, TypeCommissionEarned, msg.Type)
		assert.Equal(t, "50.00", msg.Payload["amount"])
		assert.Equal(t, "p1", msg.Payload["payment_id"])
		assert.EqualValues(t, 2, msg.Payload["level"])
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}

	select {
	case <-other.written:
		t.Fatal("notification delivered to the wrong user")
	case <-time.After(20 * time.Millisecond):
	}

	earner.hangUp()
	other.hangUp()
	waitFor(t, func() bool { return hub.Connections("earner") == 0 && hub.Connections("other") == 0 })
}

func TestHub_NotifyWithoutListeners(t *testing.T) {
	hub := NewHub()

	assert.NotPanics(t, func() {
		hub.NotifyCommission(&model.ReferralCommission{ToUserID: "nobody", Amount: decimal.NewFromInt(1)})
	})
}
