package mock

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/qterm/qterm/internal/api"
)

func TestClientFromEnvUnsetReportsNotOK(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, _, ok, err := ClientFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false when %s is unset", EnvVar)
	}
}

func TestClientFromEnvSingleResponse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resp.json")
	resp := TextResponse("scripted reply", 1)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvVar, path)

	client, backend, ok, err := ClientFromEnv()
	if err != nil {
		t.Fatalf("ClientFromEnv: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true when %s is set", EnvVar)
	}
	defer backend.Close()

	handler := &testHandler{}
	req := &api.CreateMessageRequest{
		Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")},
	}
	if _, err := client.CreateMessageStream(context.Background(), req, handler); err != nil {
		t.Fatalf("CreateMessageStream: %v", err)
	}
	if len(handler.textParts) == 0 || handler.textParts[0] != "scripted reply" {
		t.Fatalf("expected scripted reply text delta, got %+v", handler.textParts)
	}
}

func TestClientFromEnvArrayOfResponses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resp.json")
	data, err := json.Marshal([]any{TextResponse("first", 1), TextResponse("second", 2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvVar, path)

	_, backend, ok, err := ClientFromEnv()
	if err != nil {
		t.Fatalf("ClientFromEnv: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	defer backend.Close()
}
