package mock

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/qterm/qterm/internal/api"
)

// EnvVar is the environment variable checked at startup for a scripted
// mock response file. When set, the CLI talks to an in-process mock
// backend instead of the real API — useful for scripted demos and CI
// without live credentials.
const EnvVar = "Q_MOCK_CHAT_RESPONSE"

// ClientFromEnv reads EnvVar; if unset, it reports ok=false and the
// caller should construct a normal api.Client. If set, it loads the
// JSON file at that path (either a single MessageResponse object or an
// array of them, played back in order and held at the last entry once
// exhausted) and returns a client wired to an in-process Backend
// serving those responses.
func ClientFromEnv(opts ...api.ClientOption) (client *api.Client, backend *Backend, ok bool, err error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, nil, false, nil
	}

	responses, err := loadResponses(path)
	if err != nil {
		return nil, nil, true, fmt.Errorf("loading %s=%q: %w", EnvVar, path, err)
	}

	b := NewBackend(NewScriptedResponder(responses))
	return b.Client(opts...), b, true, nil
}

func loadResponses(path string) ([]*api.MessageResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var single api.MessageResponse
	if err := json.Unmarshal(data, &single); err == nil && single.Role != "" {
		return []*api.MessageResponse{&single}, nil
	}

	var many []*api.MessageResponse
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("expected a MessageResponse object or array: %w", err)
	}
	if len(many) == 0 {
		return nil, fmt.Errorf("response file contained no entries")
	}
	return many, nil
}
