// Package backend talks to the Votera GraphQL server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hasura/go-graphql-client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxResponseSize = 8 << 20

type Client struct {
	url    string
	wsURL  string
	gql    *graphql.Client
	logger logrus.FieldLogger

	mu    sync.RWMutex
	token string
}

func NewClient(url, wsURL string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	c := &Client{
		url:    url,
		wsURL:  wsURL,
		logger: logger,
	}
	c.gql = graphql.NewClient(url, &recorder{http: &http.Client{Timeout: timeout}}).
		WithRequestModifier(func(r *http.Request) {
			r.Header.Set("Accept", "application/json")
			if token := c.Token(); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		})
	return c
}

// SetToken sets the bearer credential sent with every request. An empty token signs out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Error is one entry of a GraphQL errors array.
type Error struct {
	Message    string     `json:"message"`
	Extensions Extensions `json:"extensions"`
}

type Extensions struct {
	Code      string     `json:"code,omitempty"`
	Exception *Exception `json:"exception,omitempty"`
}

// Exception carries the server-side error details the auth classification looks at.
type Exception struct {
	Code   string           `json:"code,omitempty"`
	Reason string           `json:"reason,omitempty"`
	Output *ExceptionOutput `json:"output,omitempty"`
	Data   *ExceptionData   `json:"data,omitempty"`
}

type ExceptionOutput struct {
	StatusCode int `json:"statusCode"`
}

type ExceptionData struct {
	Data []ExceptionEntry `json:"data"`
}

type ExceptionEntry struct {
	Messages []ExceptionMessage `json:"messages"`
}

type ExceptionMessage struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// StatusCode returns output.statusCode, or 0.
func (e *Error) StatusCode() int {
	if e.Extensions.Exception == nil || e.Extensions.Exception.Output == nil {
		return 0
	}
	return e.Extensions.Exception.Output.StatusCode
}

// MessageID returns data.data[0].messages[0].id, or "".
func (e *Error) MessageID() string {
	ex := e.Extensions.Exception
	if ex == nil || ex.Data == nil || len(ex.Data.Data) == 0 || len(ex.Data.Data[0].Messages) == 0 {
		return ""
	}
	return ex.Data.Data[0].Messages[0].ID
}

// Reason returns the lower level failure reported by the server, or "".
func (e *Error) Reason() string {
	if e.Extensions.Exception == nil {
		return ""
	}
	if e.Extensions.Exception.Reason != "" {
		return e.Extensions.Exception.Reason
	}
	return e.Extensions.Exception.Code
}

type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// NetworkError is a failure below GraphQL, either the transport or a non-2xx status without a body.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: status %d: %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Do runs one query or mutation and decodes data into out.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any, out any) error {
	ex := &exchange{}
	data, err := c.gql.ExecRaw(context.WithValue(ctx, exchangeKey{}, ex), query, vars)
	if err != nil {
		return ex.classify(err)
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, out)
}

type exchangeKey struct{}

// exchange is what the transport saw for one request. The GraphQL client reports failures as
// strings, the typed errors are rebuilt from this.
type exchange struct {
	status int
	body   []byte
	err    error
}

func (ex *exchange) classify(err error) error {
	if ex.err != nil {
		return &NetworkError{Err: ex.err}
	}
	var r response
	if json.Unmarshal(ex.body, &r) == nil && len(r.Errors) > 0 {
		return r.Errors
	}
	if ex.status >= http.StatusMultipleChoices {
		return &NetworkError{StatusCode: ex.status, Err: errors.New(http.StatusText(ex.status))}
	}
	return errors.Wrap(err, "graphql")
}

// recorder is the http transport of the GraphQL client. It keeps a bounded copy of each response
// for classify.
type recorder struct {
	http *http.Client
}

func (d *recorder) Do(req *http.Request) (*http.Response, error) {
	ex, _ := req.Context().Value(exchangeKey{}).(*exchange)
	if ex == nil {
		ex = &exchange{}
	}
	resp, err := d.http.Do(req)
	if err != nil {
		ex.err = err
		return nil, err
	}
	defer resp.Body.Close()

	ex.status = resp.StatusCode
	if ex.body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize)); err != nil {
		ex.err = err
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(ex.body))
	return resp, nil
}
