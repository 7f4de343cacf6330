package judgeproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/agentv/agentv"
)

type stubProvider struct {
	agentv.NotRetrySafe
}

func (stubProvider) Invoke(_ context.Context, _ agentv.ProviderRequest) (agentv.ProviderResponse, error) {
	return agentv.ProviderResponse{
		OutputMessages: []agentv.Message{{Role: agentv.RoleAssistant, Content: "ok"}},
	}, nil
}

func TestCallLimit(t *testing.T) {
	srv, err := New(stubProvider{}, nil, Options{MaxCalls: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Shutdown(context.Background())

	var lastStatus int
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(invokeRequest{Question: "q"})
		req, _ := http.NewRequest(http.MethodPost, srv.URL()+"/invoke", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+srv.Token())

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		lastStatus = resp.StatusCode
		resp.Body.Close()
	}

	if lastStatus != http.StatusTooManyRequests {
		t.Errorf("third call status = %d, want 429", lastStatus)
	}
	if srv.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want 2 (the rejected call is not counted)", srv.CallCount())
	}
}

func TestUnauthorized(t *testing.T) {
	srv, err := New(stubProvider{}, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Shutdown(context.Background())

	body, _ := json.Marshal(invokeRequest{Question: "q"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL()+"/invoke", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
