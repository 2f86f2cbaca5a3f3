package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type echo struct {
	Value float64 `json:"value"`
}

func TestStandardClient_Wraps(t *testing.T) {
	custom := &http.Client{}
	if NewStandardClient(custom).Client != custom {
		t.Error("expected custom client to be wrapped")
	}
	if NewStandardClient(nil).Client != http.DefaultClient {
		t.Error("expected default client for nil")
	}
}

func TestPostJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			WriteJSONError(w, http.StatusBadRequest, "bad request")
			return
		}
		WriteJSON(w, http.StatusOK, echo{Value: 2.5})
	}))
	defer srv.Close()

	var out echo
	if err := PostJSON(context.Background(), NewStandardClient(srv.Client()), srv.URL, echo{Value: 1}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Value != 2.5 {
		t.Errorf("got %v, want 2.5", out.Value)
	}
}

func TestPostJSON_StatusError(t *testing.T) {
	mock := NewMockHTTPClient().AddResponse(http.StatusUnprocessableEntity, `{"error":"degenerate slope"}`)
	err := PostJSON(context.Background(), mock, "http://quant.local/api/v1/quantify", echo{}, nil)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnprocessableEntity || se.Message != "degenerate slope" {
		t.Errorf("unexpected status error %+v", se)
	}
	if string(mock.Body(0)) != `{"value":0}` {
		t.Errorf("recorded body %q", mock.Body(0))
	}
}

func TestPostJSON_DecodeError(t *testing.T) {
	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `not json`)
	var out echo
	if err := PostJSON(context.Background(), mock, "http://x", echo{}, &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestMockHTTPClient_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(boom)
	err := PostJSON(context.Background(), mock, "http://x", echo{}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected transport error, got %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("got %d requests, want 1", mock.RequestCount())
	}
}

func TestMockHTTPClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `{}`)
	err := PostJSON(ctx, mock, "http://x", echo{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("custom")
	}
	req := httptest.NewRequest(http.MethodGet, "http://x", nil)
	if _, err := mock.Do(req); err == nil || err.Error() != "custom" {
		t.Errorf("expected custom error, got %v", err)
	}
}
