//go:build integration

// End-to-end tests against a running tally service.
//
// Run with:
//
//	go run ./cmd/seed -sqlite ./tally.db
//	go run ./cmd/tally &
//	go test -tags=integration -v ./cmd/tally/...
//
// TALLY_TEST_URL overrides the default http://localhost:8080.
package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TALLY_TEST_URL")
	if url == "" {
		url = "http://localhost:8080"
	}
	resp, err := httpClient.Get(url + "/health")
	if err != nil {
		t.Skipf("tally not reachable at %s: %v", url, err)
	}
	resp.Body.Close()
	return url
}

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("failed to unmarshal response: %v (body: %s)", err, respBody)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	url := baseURL(t)

	var health map[string]string
	if code := call(t, http.MethodGet, url+"/health", nil, &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %q", health["status"])
	}
}

func TestReadEndpoints(t *testing.T) {
	url := baseURL(t)

	for _, path := range []string{"/risk", "/reminders/suggestions", "/insights", "/forecast", "/vip", "/coaching"} {
		t.Run(path, func(t *testing.T) {
			var body map[string]any
			if code := call(t, http.MethodGet, url+path, nil, &body); code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %v", code, body)
			}
		})
	}
}

func TestRiskScoresSorted(t *testing.T) {
	url := baseURL(t)

	var resp struct {
		Scores []struct {
			ClientID string  `json:"clientId"`
			Score    float64 `json:"score"`
		} `json:"scores"`
	}
	call(t, http.MethodGet, url+"/risk", nil, &resp)

	for i := 1; i < len(resp.Scores); i++ {
		if resp.Scores[i-1].Score < resp.Scores[i].Score {
			t.Fatalf("scores not sorted descending at %d: %v < %v", i, resp.Scores[i-1].Score, resp.Scores[i].Score)
		}
	}
}

func TestUnknownClient(t *testing.T) {
	url := baseURL(t)

	for _, path := range []string{"/risk/", "/vip/"} {
		if code := call(t, http.MethodGet, url+path+uuid.NewString(), nil, nil); code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
	}
}

func TestAnomalyCheck(t *testing.T) {
	url := baseURL(t)

	t.Run("NewClientLargeCredit", func(t *testing.T) {
		var check struct {
			Flags []struct {
				Kind string `json:"kind"`
			} `json:"flags"`
		}
		code := call(t, http.MethodPost, url+"/anomalies/check", map[string]any{
			"clientId": uuid.NewString(),
			"total":    75000,
			"status":   "Credit",
		}, &check)
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}

		found := false
		for _, f := range check.Flags {
			if f.Kind == "high_credit_new_client" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected high_credit_new_client flag, got %+v", check.Flags)
		}
	})

	t.Run("RejectsInvalidStatus", func(t *testing.T) {
		code := call(t, http.MethodPost, url+"/anomalies/check", map[string]any{
			"total":  1000,
			"status": "Barter",
		}, nil)
		if code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", code)
		}
	})
}

func TestReminderScanIdempotent(t *testing.T) {
	url := baseURL(t)

	var first, second struct {
		Count int `json:"count"`
	}
	if code := call(t, http.MethodPost, url+"/reminders/scan", nil, &first); code != http.StatusOK && code != http.StatusConflict {
		t.Fatalf("unexpected status %d", code)
	}
	if code := call(t, http.MethodPost, url+"/reminders/scan", nil, &second); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if second.Count != 0 {
		t.Errorf("second scan created %d reminders, expected 0", second.Count)
	}
}
