package httpclient

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetDefaultClient_Singleton(t *testing.T) {
	client := GetDefaultClient()
	if client == nil {
		t.Fatal("expected client to not be nil")
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.Timeout)
	}
	if GetDefaultClient() != client {
		t.Errorf("expected the same client instance on repeated calls")
	}
}

func TestNewClient_TransportTuning(t *testing.T) {
	client := NewClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok || transport == nil {
		t.Fatalf("expected transport to be *http.Transport")
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"MaxIdleConns", transport.MaxIdleConns, MaxIdleConns},
		{"MaxIdleConnsPerHost", transport.MaxIdleConnsPerHost, MaxIdleConnsPerHost},
		{"IdleConnTimeout", transport.IdleConnTimeout, IdleConnTimeout},
		{"TLSHandshakeTimeout", transport.TLSHandshakeTimeout, TLSHandshakeTimeout},
		{"ExpectContinueTimeout", transport.ExpectContinueTimeout, ExpectContinueTimeout},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDoAndRead(t *testing.T) {
	const expectedBody = `{"dialogue": []}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expectedBody)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	body, resp, err := DoAndRead(GetDefaultClient(), req)
	if err != nil {
		t.Fatalf("DoAndRead failed: %v", err)
	}
	if string(body) != expectedBody {
		t.Errorf("expected body %q, got %q", expectedBody, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", resp.Status)
	}
}

func TestDoAndRead_TransportError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://invalid.url.local", nil)
	_, _, err := DoAndRead(GetDefaultClient(), req)
	if err == nil {
		t.Error("expected error for unreachable host, got nil")
	}
}

func TestDoAndRead_TooLarge(t *testing.T) {
	oversized := make([]byte, MaxResponseBytes+1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(oversized)))
		w.WriteHeader(http.StatusOK)
		w.Write(oversized)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, _, err := DoAndRead(GetDefaultClient(), req)
	if err == nil || !strings.Contains(err.Error(), "response body too large") {
		t.Fatalf("expected response body too large error, got: %v", err)
	}
}

func TestSetDefaultClientForTesting(t *testing.T) {
	custom := &http.Client{Timeout: 3 * time.Second}
	restore := SetDefaultClientForTesting(custom)
	defer restore()

	if GetDefaultClient() != custom {
		t.Fatalf("expected overridden default client")
	}
}
