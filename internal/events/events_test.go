package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/GozaMadrid/internal/storage"
)

func TestPublishLeadMessage(t *testing.T) {
	var (
		gotSubject string
		gotData    []byte
	)
	n := newNATS("leads.created", nil, func(subject string, data []byte) error {
		gotSubject, gotData = subject, data
		return nil
	})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	err := n.PublishLead(context.Background(), storage.Lead{ID: "abc", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "leads.created", gotSubject)

	var msg LeadMessage
	require.NoError(t, json.Unmarshal(gotData, &msg))
	assert.Equal(t, "abc", msg.Lead.ID)
	assert.Equal(t, messageVersion, msg.Version)
	assert.Equal(t, messageSource, msg.Source)
	assert.True(t, fixed.Equal(msg.Timestamp))
}

func TestPublishLeadErrors(t *testing.T) {
	n := newNATS("leads.created", nil, func(string, []byte) error { return errors.New("nats: connection closed") })
	err := n.PublishLead(context.Background(), storage.Lead{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leads.created")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.PublishLead(ctx, storage.Lead{}), context.Canceled)
}

func TestNewNATSValidation(t *testing.T) {
	_, err := NewNATS("", "leads.created", nil)
	assert.Error(t, err)
	_, err = NewNATS("nats://127.0.0.1:4222", "", nil)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishLead(context.Background(), storage.Lead{}))
	p.Close()
}
