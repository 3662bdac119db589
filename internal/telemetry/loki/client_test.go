package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func capturePush(t *testing.T) (*httptest.Server, *PushRequest) {
	t.Helper()
	got := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, got); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestPushEventJSONLabels(t *testing.T) {
	srv, got := capturePush(t)

	line := `{"eventType":"geo_assessment","severity":"medium","source":"geo svc","createdAt":"2026-03-01T10:30:00Z"}`
	if err := PushEventJSON(context.Background(), srv.URL, []byte(line)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != "trustgate" || s.Stream["event_type"] != "geo_assessment" {
		t.Errorf("labels = %v", s.Stream)
	}
	if s.Stream["source"] != "geo_svc" {
		t.Errorf("source label = %q, want sanitized", s.Stream["source"])
	}
	wantNS := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC).UnixNano()
	if len(s.Values) != 1 || s.Values[0][0] != strconv.FormatInt(wantNS, 10) {
		t.Errorf("values = %v", s.Values)
	}
	if s.Values[0][1] != line {
		t.Errorf("line = %q", s.Values[0][1])
	}
}

func TestPushEventJSONUnparseableLine(t *testing.T) {
	srv, got := capturePush(t)

	if err := PushEventJSON(context.Background(), srv.URL, []byte("not json")); err != nil {
		t.Fatalf("push: %v", err)
	}
	s := got.Streams[0]
	if len(s.Stream) != 1 || s.Stream["job"] != "trustgate" {
		t.Errorf("labels = %v, want only the job label", s.Stream)
	}
}

func TestPushEventRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil)
	if err == nil {
		t.Error("non-2xx must return an error")
	}
}
