package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestHangup_SendsChannel(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}, nil)

	if err := c.Hangup(context.Background(), "PJSIP/1001-000a"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotPath != "/hangup-call" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["channel"] != "PJSIP/1001-000a" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestTransfer_SendsBlindTransferForExtension(t *testing.T) {
	var gotBody map[string]string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}, nil)

	if err := c.Transfer(context.Background(), "PJSIP/1001-000a", "2004"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotBody["extension"] != "1001" || gotBody["destination"] != "2004" || gotBody["type"] != "blind" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestTransfer_ManagerMsgQuirkIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "'ManagerMsg' object has no attribute 'keys'",
		})
	}, nil)

	if err := c.Transfer(context.Background(), "PJSIP/1001-000a", "2004"); err != nil {
		t.Fatalf("quirk response must classify as success, got %v", err)
	}
}

func TestTransfer_SimilarErrorIsNotQuirk(t *testing.T) {
	// Only the exact serialization signature is benign; near-misses must fail.
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "'ManagerMsg' object has no attribute 'values'",
		})
	}, nil)

	if err := c.Transfer(context.Background(), "PJSIP/1001-000a", "2004"); err == nil {
		t.Fatalf("expected failure for non-quirk error")
	}
}

func TestTransfer_NoActiveChannelNamesExtension(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "No active channel found for extension 1001",
		})
	}, nil)

	err := c.Transfer(context.Background(), "PJSIP/1001-000a", "2004")
	if err == nil {
		t.Fatalf("expected semantic failure")
	}
	ext, ok := IsNoActiveChannel(err)
	if !ok || ext != "1001" {
		t.Fatalf("expected NoActiveChannelError for 1001, got %v", err)
	}
	if !strings.Contains(err.Error(), "1001") {
		t.Fatalf("operator message must name the extension: %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("semantic failures must not be retried")
	}
}

func TestHangup_FailureStatusWithoutBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	if err := c.Hangup(context.Background(), "PJSIP/1001-000a"); err == nil {
		t.Fatalf("expected error for 500")
	}
}

func TestCommandSuccess_InvalidatesSnapshotCache(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	cache.Set(context.Background(), nil)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, cache)

	if err := c.Hangup(context.Background(), "PJSIP/1001-000a"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok, _ := cache.Get(context.Background()); ok {
		t.Fatalf("successful command must invalidate the snapshot cache")
	}
}

func TestTransfer_RejectsUnparseableChannel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for unparseable channel")
	}, nil)

	if err := c.Transfer(context.Background(), "Local/1001@ctx", "2004"); err == nil {
		t.Fatalf("expected error for unparseable channel")
	}
}
