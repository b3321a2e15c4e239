package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Default hub push paths.
const (
	DefaultNetworkActivityPath = "/sse/network_activity/"
	DefaultTaskUpdatesPath     = "/sse/task_updates/"
)

// SSESource reads the hub's text/event-stream endpoints. Change BaseURL with
// SetBaseURL once streams may be opening.
type SSESource struct {
	mu                  sync.RWMutex
	BaseURL             string
	NetworkActivityPath string
	TaskUpdatesPath     string
	Client              *http.Client
}

func NewSSESource(baseURL string) *SSESource {
	return &SSESource{
		BaseURL:             strings.TrimRight(baseURL, "/"),
		NetworkActivityPath: DefaultNetworkActivityPath,
		TaskUpdatesPath:     DefaultTaskUpdatesPath,
		// No timeout: the response body stays open for the stream's lifetime.
		Client: &http.Client{},
	}
}

// SetBaseURL points later Opens at another hub. Open streams are not touched.
func (s *SSESource) SetBaseURL(baseURL string) {
	s.mu.Lock()
	s.BaseURL = strings.TrimRight(baseURL, "/")
	s.mu.Unlock()
}

// URL returns the endpoint for topic.
func (s *SSESource) URL(topic Topic) (string, error) {
	s.mu.RLock()
	base := s.BaseURL
	s.mu.RUnlock()
	switch topic.Kind {
	case NetworkActivityTopic:
		return base + s.NetworkActivityPath, nil
	case TaskUpdatesTopic:
		if topic.NodeID == "" {
			return "", fmt.Errorf("push: task updates need a node id")
		}
		return base + s.TaskUpdatesPath + "?node_id=" + url.QueryEscape(topic.NodeID), nil
	default:
		return "", fmt.Errorf("push: unknown topic %d", topic.Kind)
	}
}

func (s *SSESource) Open(ctx context.Context, topic Topic) (Stream, error) {
	u, err := s.URL(topic)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sse connect %s: %w", topic, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("sse %s: status %d: %s", topic, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &sseStream{body: resp.Body, reader: NewReader(resp.Body), cancel: cancel}, nil
}

type sseStream struct {
	body   io.ReadCloser
	reader *Reader
	cancel context.CancelFunc
}

func (s *sseStream) Next() ([]byte, error) {
	for {
		ev, err := s.reader.Next()
		if err == io.EOF {
			return nil, ErrStreamEnded
		}
		if err != nil {
			return nil, fmt.Errorf("sse read: %w", err)
		}
		if ev.Data == "" {
			continue
		}
		return []byte(ev.Data), nil
	}
}

func (s *sseStream) Close() error {
	s.cancel()
	return s.body.Close()
}
