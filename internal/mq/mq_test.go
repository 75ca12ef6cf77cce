package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParsePayloadRoundTrip(t *testing.T) {
	jobID := uuid.New()
	channelID := uuid.New()

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobEnqueued,
		Payload:   JobEnqueuedPayload{JobID: jobID, ChannelID: channelID},
		Timestamp: time.Now(),
	}

	// Сообщение проходит через брокер как JSON: payload на стороне
	// consumer'а — map, а не структура.
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var received Message
	if err := json.Unmarshal(body, &received); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	payload, err := ParsePayload[JobEnqueuedPayload](&received)
	if err != nil {
		t.Fatalf("parse payload failed: %v", err)
	}
	if payload.JobID != jobID {
		t.Errorf("job_id = %s, want %s", payload.JobID, jobID)
	}
	if payload.ChannelID != channelID {
		t.Errorf("channel_id = %s, want %s", payload.ChannelID, channelID)
	}
}

func TestParsePayloadBadShape(t *testing.T) {
	msg := &Message{
		ID:      uuid.New().String(),
		Type:    MessageTypeJobFinished,
		Payload: "not an object",
	}

	if _, err := ParsePayload[JobFinishedPayload](msg); err == nil {
		t.Error("expected error for malformed payload")
	}
}
