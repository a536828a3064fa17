package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	ready := harvest.DatasetReady{
		RunID:     "run-1",
		Stage:     "news",
		URIs:      []string{"file:///tmp/data/raw/out.csv"},
		Records:   12,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	id1, err := pub.Publish(context.Background(), "harvest-ready", ready)
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "other", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "harvest-ready", msgs[0].Topic)
	assert.Equal(t, "dataset.ready", msgs[0].Attributes["event"])
	assert.Equal(t, "news", msgs[0].Attributes["stage"])
	assert.Nil(t, msgs[1].Attributes)

	var decoded harvest.DatasetReady
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, ready, decoded)

	msgs[0].Topic = "modified"
	assert.Equal(t, "harvest-ready", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "t", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, New().Messages())
}
