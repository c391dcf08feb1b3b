package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/apierr"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/media"
)

func newTestClient(serverURL, token string) *Client {
	return NewClient(Config{
		BaseURL:  serverURL + "/",
		APIToken: token,
		Timeout:  5 * time.Second,
	}, nil)
}

func TestSendText(t *testing.T) {
	var gotBody, gotToken, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotToken = r.Header.Get("X-API-Token")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"sent","id":"abc"}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "secret")
	resp, err := client.SendText(context.Background(), "+5511999999999", "CPU high", "")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if want := `{"phone":"+5511999999999","message":"CPU high"}`; gotBody != want {
		t.Errorf("expected body %s, got %s", want, gotBody)
	}
	if gotToken != "secret" {
		t.Errorf("expected X-API-Token secret, got %q", gotToken)
	}
	if !strings.HasPrefix(gotContentType, "application/json") {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if diff := cmp.Diff(Response{"status": "sent", "id": "abc"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendTextWithSubjectAndNoToken(t *testing.T) {
	var gotBody string
	var hadToken bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, hadToken = r.Header["X-Api-Token"]
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "")
	if _, err := client.SendText(context.Background(), "5511", "disk <90%> & rising", "PROBLEM"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if want := `{"phone":"5511","message":"disk <90%> & rising","subject":"PROBLEM"}`; gotBody != want {
		t.Errorf("expected body %s, got %s", want, gotBody)
	}
	if hadToken {
		t.Error("expected no X-API-Token header")
	}
}

func TestSendMedia(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send-media" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "")
	obj := media.Encode([]byte("png"), "image/png", "zabbix-graph.png")
	if _, err := client.SendMedia(context.Background(), "5511", obj, "CPU high"); err != nil {
		t.Fatalf("SendMedia failed: %v", err)
	}

	want := `{"phone":"5511","media":{"data":"cG5n","mimetype":"image/png","filename":"zabbix-graph.png"},"caption":"CPU high"}`
	if gotBody != want {
		t.Errorf("expected body %s, got %s", want, gotBody)
	}
}

func TestSendMediaOmitsEmptyCaption(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "")
	if _, err := client.SendMedia(context.Background(), "5511", media.Object{}, ""); err != nil {
		t.Fatalf("SendMedia failed: %v", err)
	}
	if strings.Contains(gotBody, "caption") {
		t.Errorf("expected no caption field, got %s", gotBody)
	}
}

func TestSendTextHTTPError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(strings.Repeat("e", 300)))
		}))

		client := newTestClient(server.URL, "")
		_, err := client.SendText(context.Background(), "5511", "msg", "")
		server.Close()

		var te *apierr.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if te.StatusCode != status {
			t.Errorf("expected status %d, got %d", status, te.StatusCode)
		}
		if len(te.Body) != apierr.MaxBodyExcerpt {
			t.Errorf("expected truncated body, got %d chars", len(te.Body))
		}
		if te.Op != "/send" {
			t.Errorf("expected op /send, got %q", te.Op)
		}
	}
}

func TestSendTextInvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "")
	if _, err := client.SendText(context.Background(), "5511", "msg", ""); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestSendTextLogsBeforeSending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	var lines []string
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, func(format string, args ...any) {
		lines = append(lines, format)
	})
	if _, err := client.SendText(context.Background(), "1", "m", ""); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "POST %s (payload %d bytes)" {
		t.Errorf("unexpected log lines: %q", lines)
	}
}
