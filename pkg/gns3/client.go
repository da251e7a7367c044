// Package gns3 talks to the REST API of a GNS3 server.
package gns3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const (
	DefaultRatePerSecond = 10
	DefaultTimeout       = 30 * time.Second
)

// Client is a thin client for the v2 API.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

// ErrorReply is the body GNS3 sends with non 2xx responses.
type ErrorReply struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type Version struct {
	Version string `json:"version"`
	Local   bool   `json:"local"`
}

type Project struct {
	ID     string `json:"project_id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type Node struct {
	ID        string `json:"node_id"`
	Name      string `json:"name"`
	Directory string `json:"node_directory"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

type Link struct {
	ID    string            `json:"link_id,omitempty"`
	Nodes []topology.Member `json:"nodes"`
}

// NewClient returns a client for the server at endpoint, e.g.
// http://gns3:3080. ratePerSecond caps the request rate; zero means
// DefaultRatePerSecond.
func NewClient(endpoint string, ratePerSecond float64) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRatePerSecond
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// ProjectURL is where a project lives on the server.
func (c *Client) ProjectURL(projectID string) string {
	return c.url("/v2/projects/%s", projectID)
}

func (c *Client) url(sub string, args ...interface{}) string {
	return c.endpoint + fmt.Sprintf(sub, args...)
}

func parseError(res *http.Response) error {
	text, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "couldn't read body response")
	}
	var reply ErrorReply
	if err := json.Unmarshal(text, &reply); err != nil || reply.Message == "" {
		return errors.Errorf("%s: %s", res.Status, strings.TrimSpace(string(text)))
	}
	return errors.Errorf("%s: %s", res.Status, reply.Message)
}

func (c *Client) do(ctx context.Context, method, url string, in, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "couldn't marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "couldn't build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", url).Msg("gns3 request")
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, url)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errors.Wrapf(parseError(res), "%s %s", method, url)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "couldn't decode response")
	}
	return nil
}

// Version returns the server version; it doubles as a ping.
func (c *Client) Version(ctx context.Context) (Version, error) {
	var v Version
	err := c.do(ctx, http.MethodGet, c.url("/v2/version"), nil, &v)
	return v, err
}

// WaitReady polls the server until it answers or maxWait elapses.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration) (Version, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = maxWait

	var v Version
	err := backoff.RetryNotify(func() error {
		var err error
		v, err = c.Version(ctx)
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.Warn().Err(err).Dur("retry_in", d).Msg("gns3 server not ready")
	})
	return v, err
}

func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodPost, c.url("/v2/projects"), map[string]string{"name": name}, &p)
	return p, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodGet, c.url("/v2/projects/%s", id), nil, &p)
	return p, err
}

// AddNodeFromTemplate instantiates a template at the given canvas position.
func (c *Client) AddNodeFromTemplate(ctx context.Context, projectID, templateID string, x, y int) (Node, error) {
	var n Node
	err := c.do(ctx, http.MethodPost, c.url("/v2/projects/%s/templates/%s", projectID, templateID),
		map[string]int{"x": x, "y": y}, &n)
	return n, err
}

func (c *Client) RenameNode(ctx context.Context, projectID, nodeID, name string) (Node, error) {
	var n Node
	err := c.do(ctx, http.MethodPut, c.url("/v2/projects/%s/nodes/%s", projectID, nodeID),
		map[string]string{"name": name}, &n)
	return n, err
}

func (c *Client) CreateLink(ctx context.Context, projectID string, members []topology.Member) (Link, error) {
	var l Link
	err := c.do(ctx, http.MethodPost, c.url("/v2/projects/%s/links", projectID), Link{Nodes: members}, &l)
	return l, err
}
