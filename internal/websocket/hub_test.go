package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/model"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(logger.Discard())
	go h.Run(ctx)
	return h
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var out map[string]interface{}
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatal(err)
		}
		return out
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestHubRoutesEventsByJob(t *testing.T) {
	h := startHub(t)
	a := &Client{JobID: "job-a", Send: make(chan []byte, 4)}
	b := &Client{JobID: "job-b", Send: make(chan []byte, 4)}
	h.Register(a)
	h.Register(b)

	eta := 42
	h.BroadcastProgress("job-a", 30, model.JobStatusProcessing, model.StageEncode, &eta)
	h.BroadcastStatus("job-b", model.JobStatusPaused)

	got := receive(t, a)
	if got["type"] != model.WSMessageTypeProgress || got["currentStage"] != model.StageEncode || got["etaSeconds"] != float64(42) {
		t.Errorf("job-a got %v", got)
	}
	got = receive(t, b)
	if got["type"] != model.WSMessageTypeStatus || got["status"] != string(model.JobStatusPaused) {
		t.Errorf("job-b got %v", got)
	}

	h.BroadcastError("job-a", "RENDER_FAILED", "boom")
	got = receive(t, a)
	if got["type"] != model.WSMessageTypeError {
		t.Errorf("job-a got %v", got)
	}
	select {
	case data := <-b.Send:
		t.Errorf("job-b received job-a event %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := &Client{JobID: "job-a", Send: make(chan []byte)}
	h.Register(slow)

	h.BroadcastComplete("job-a", map[string]string{"outputUrl": "x"})

	deadline := time.Now().Add(time.Second)
	for h.Subscribers("job-a") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client still subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := <-slow.Send; ok {
		t.Error("slow client channel not closed")
	}

	// unregistering an already dropped client is harmless
	h.Unregister(slow)
}
