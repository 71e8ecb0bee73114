package analyses

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dialWatch(t *testing.T, ctrl *Controller) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(ctrl).RegisterRoutes(r.Group("/api/v1"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/analyses/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWatchSendsCurrentSnapshotOnConnect(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	record := finalizedRecord("w1")
	ctrl.mu.Lock()
	snapshot := record
	ctrl.current = &snapshot
	ctrl.mu.Unlock()

	conn := dialWatch(t, ctrl)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev struct {
		Type     string `json:"type"`
		Analysis struct {
			ID        string `json:"id"`
			StageName string `json:"stageName"`
		} `json:"analysis"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != "finalized" {
		t.Fatalf("expected finalized event for a completed record, got %q", ev.Type)
	}
	if ev.Analysis.ID != "w1" {
		t.Fatalf("expected current snapshot w1, got %q", ev.Analysis.ID)
	}
	if ev.Analysis.StageName == "" {
		t.Fatalf("expected a stage name on the wire")
	}
}

func TestWatchStreamsPipelineEvents(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})
	// Slow the ticker down so the subscription is in place before the first
	// stage advance.
	ctrl.TickPeriod = 20 * time.Millisecond
	conn := dialWatch(t, ctrl)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	record, err := ctrl.SubmitText(context.Background(), "streamed submission text")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	var ev struct {
		Type     string `json:"type"`
		Analysis struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Stage  int    `json:"stage"`
		} `json:"analysis"`
	}
	sawStageUpdate := false
	for {
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if ev.Analysis.ID != record.ID {
			t.Fatalf("unexpected record %q on the stream", ev.Analysis.ID)
		}
		if ev.Type == "stage_update" {
			sawStageUpdate = true
		}
		if ev.Type == "finalized" {
			break
		}
	}
	if !sawStageUpdate {
		t.Fatalf("expected at least one stage_update before finalized")
	}
	if ev.Analysis.Status != StatusCompleted {
		t.Fatalf("expected completed finalized event, got %q", ev.Analysis.Status)
	}
	waitFinalized(t, ctrl)
}
