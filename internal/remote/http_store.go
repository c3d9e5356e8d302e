package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// HTTPStore talks to a REST document store:
//
//	GET    /v1/{collection}           list, filter via query params
//	GET    /v1/{collection}/{key}     fetch one document
//	PUT    /v1/{collection}/{key}     upsert
//	DELETE /v1/{collection}/{key}     delete
//
// Network failures, timeouts and 5xx responses classify as transient
// unavailability; 4xx responses as permanent rejection. Subscriptions are
// poll-based since the wire protocol has no push channel.
type HTTPStore struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	closers []chan struct{}
}

// NewHTTPStore builds a store client against baseURL.
func NewHTTPStore(baseURL string, timeout, pollInterval time.Duration, logger *zap.Logger) *HTTPStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStore{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Get fetches a single document.
func (s *HTTPStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	body, err := s.do(ctx, http.MethodGet, s.docURL(collection, key), nil)
	if err != nil {
		return nil, err
	}
	return &Document{Key: key, Data: body}, nil
}

// Query lists documents in a collection, optionally filtered.
func (s *HTTPStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	u := fmt.Sprintf("%s/v1/%s", s.baseURL, url.PathEscape(collection))
	if len(filter) > 0 {
		q := url.Values{}
		for k, v := range filter {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	body, err := s.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteRejected.Code, appErrors.ErrRemoteRejected.Status, "decode query response")
	}
	return docs, nil
}

// Put upserts a document.
func (s *HTTPStore) Put(ctx context.Context, collection, key string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode document")
	}
	_, err = s.do(ctx, http.MethodPut, s.docURL(collection, key), payload)
	return err
}

// Delete removes a document.
func (s *HTTPStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.do(ctx, http.MethodDelete, s.docURL(collection, key), nil)
	return err
}

// Subscribe polls the collection and invokes fn when its contents change.
// The returned function stops the poll goroutine.
func (s *HTTPStore) Subscribe(collection string, fn func(Event)) (func(), error) {
	stop := make(chan struct{})
	s.mu.Lock()
	s.closers = append(s.closers, stop)
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		var last [sha256.Size]byte
		first := true
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
				docs, err := s.Query(ctx, collection, nil)
				cancel()
				if err != nil {
					continue
				}
				raw, err := json.Marshal(docs)
				if err != nil {
					continue
				}
				sum := sha256.Sum256(raw)
				if first {
					first = false
					last = sum
					continue
				}
				if sum != last {
					last = sum
					fn(Event{Collection: collection, Type: EventChanged})
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }, nil
}

// Close stops all poll subscriptions.
func (s *HTTPStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.closers {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	s.closers = nil
}

func (s *HTTPStore) docURL(collection, key string) string {
	return fmt.Sprintf("%s/v1/%s/%s", s.baseURL, url.PathEscape(collection), url.PathEscape(key))
}

func (s *HTTPStore) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "remote store unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "read remote response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s: not found", method, u))
	case resp.StatusCode >= 500:
		return nil, appErrors.New(appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, fmt.Sprintf("remote store returned %d", resp.StatusCode))
	default:
		return nil, appErrors.New(appErrors.ErrRemoteRejected.Code, appErrors.ErrRemoteRejected.Status, fmt.Sprintf("remote store rejected request with %d", resp.StatusCode))
	}
}
