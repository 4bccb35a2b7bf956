package backend

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hasura/go-graphql-client"
	"github.com/pkg/errors"
)

const handshakeTimeout = 10 * time.Second

var ErrSubscriptionDisabled = errors.New("subscription endpoint not configured")

// Subscribe runs one GraphQL subscription over graphql-transport-ws until ctx is done or the server
// completes it. handle is called for every pushed data payload, onConnected, when not nil, every
// time the connection is acknowledged.
func (c *Client) Subscribe(ctx context.Context, query string, vars map[string]any, handle func(json.RawMessage), onConnected func()) error {
	if c.wsURL == "" {
		return ErrSubscriptionDisabled
	}

	params := map[string]any{}
	if token := c.Token(); token != "" {
		params["Authorization"] = "Bearer " + token
	}

	var (
		mu     sync.Mutex
		failed error
	)
	sc := graphql.NewSubscriptionClient(c.wsURL).
		WithProtocol(graphql.GraphQLWS).
		WithConnectionParams(params).
		WithRetryTimeout(handshakeTimeout).
		WithExitWhenNoSubscription(true).
		WithLog(c.logger.Debug).
		OnError(func(_ *graphql.SubscriptionClient, err error) error {
			return err
		})
	if onConnected != nil {
		sc = sc.OnConnected(onConnected)
	}

	_, err := sc.Exec(query, vars, func(message []byte, err error) error {
		if err != nil {
			mu.Lock()
			if failed == nil {
				failed = subscriptionErr(err)
			}
			mu.Unlock()
			go sc.Close()
			return nil
		}
		handle(message)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = sc.Close()
		case <-stop:
		}
	}()

	err = sc.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	mu.Lock()
	defer mu.Unlock()
	if failed != nil {
		return failed
	}
	if err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

// subscriptionErr keeps server errors typed like the ones Do returns.
func subscriptionErr(err error) error {
	var gerrs graphql.Errors
	if !errors.As(err, &gerrs) {
		return err
	}
	raw, merr := json.Marshal(gerrs)
	if merr != nil {
		return err
	}
	var errs Errors
	if json.Unmarshal(raw, &errs) != nil || len(errs) == 0 {
		return err
	}
	return errs
}

// SubscribeProposalChanged reports the id of every proposal the backend changes.
func (c *Client) SubscribeProposalChanged(ctx context.Context, fn func(id string), onConnected func()) error {
	return c.Subscribe(ctx, subscriptionProposalChanged, nil, func(data json.RawMessage) {
		var out struct {
			ProposalChanged *struct {
				ID string `json:"id"`
			} `json:"proposalChanged"`
		}
		if err := json.Unmarshal(data, &out); err != nil || out.ProposalChanged == nil {
			return
		}
		fn(out.ProposalChanged.ID)
	}, onConnected)
}
