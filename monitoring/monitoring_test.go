package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.RecordPrediction("setosa", 2*time.Millisecond)
		}()
	}
	wg.Wait()
	mc.RecordPrediction("virginica", 4*time.Millisecond)
	mc.RecordRequest(OutcomeInvalid)

	snap := mc.Snapshot()
	if snap.Requests[OutcomeOK] != 51 {
		t.Fatalf("expected 51 ok requests, got %d", snap.Requests[OutcomeOK])
	}
	if snap.Requests[OutcomeInvalid] != 1 {
		t.Fatalf("expected 1 invalid request, got %d", snap.Requests[OutcomeInvalid])
	}
	if snap.Species["setosa"] != 50 || snap.Species["virginica"] != 1 {
		t.Fatalf("unexpected species counts: %v", snap.Species)
	}
	if snap.MaxLatencyMS != 4 {
		t.Fatalf("expected max latency 4ms, got %f", snap.MaxLatencyMS)
	}
	if snap.MeanLatencyMS <= 2 || snap.MeanLatencyMS >= 4 {
		t.Fatalf("unexpected mean latency %f", snap.MeanLatencyMS)
	}
}

func TestWebSocketHubPublish(t *testing.T) {
	hub := NewWebSocketHub(zap.NewNop(), []string{"*"})
	go hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := hub.Publish(PredictionEvent, "req-1", map[string]string{"species": "setosa"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != PredictionEvent || msg.ID != "req-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.Contains(string(msg.Data), "setosa") {
		t.Fatalf("unexpected data: %s", msg.Data)
	}
}

func TestWebSocketHubRejectsForeignOrigin(t *testing.T) {
	hub := NewWebSocketHub(zap.NewNop(), []string{"https://iris.example"})
	go hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake to fail for foreign origin")
	}
}
