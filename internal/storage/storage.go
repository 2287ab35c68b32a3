// Package storage talks to the local ActivityWatch server. It creates the
// watcher's bucket and appends one event per answered (or unanswered)
// question. The server owns all durability; nothing is buffered here.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mactep/aw-watcher-ask/internal/models"
)

const (
	clientName  = "aw-watcher-ask"
	defaultHost = "localhost"

	defaultPort = 5600
	testingPort = 5666
)

// Event is one ActivityWatch event as accepted by the REST API.
type Event struct {
	ID        int                 `json:"id,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Duration  float64             `json:"duration"`
	Data      models.AnswerRecord `json:"data"`
}

// Bucket mirrors the server's bucket metadata; only the fields the
// watcher reads are mapped.
type Bucket struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Client   string `json:"client"`
	Hostname string `json:"hostname"`
}

// Client is a minimal ActivityWatch REST client.
type Client struct {
	baseURL    string
	clientName string
	hostname   string
	http       *http.Client
}

// Option overrides a Client default.
type Option func(*Client)

// WithBaseURL points the client at an explicit server address.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHostname overrides the hostname used in the bucket id.
func WithHostname(h string) Option {
	return func(c *Client) { c.hostname = h }
}

// New builds a client for the local server. In testing mode the client
// name is prefixed and the testing port is used. AW_SERVER_HOST and
// AW_SERVER_PORT env vars override the endpoint.
func New(testing bool, opts ...Option) *Client {
	name := clientName
	port := defaultPort
	if testing {
		name = "test-" + clientName
		port = testingPort
	}

	host := defaultHost
	if h := os.Getenv("AW_SERVER_HOST"); h != "" {
		host = h
	}
	portStr := fmt.Sprint(port)
	if p := os.Getenv("AW_SERVER_PORT"); p != "" {
		portStr = p
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%s", host, portStr),
		clientName: name,
		hostname:   hostname,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ServerAddress returns the base URL the client talks to.
func (c *Client) ServerAddress() string { return c.baseURL }

// BucketID is "<client>_<hostname>", the watcher's bucket name.
func (c *Client) BucketID() string {
	return c.clientName + "_" + c.hostname
}

// EnsureBucket creates the bucket if it does not exist. The server
// answers 304 when the bucket is already there; both count as success.
func (c *Client) EnsureBucket(bucketID, eventType string) error {
	payload := map[string]string{
		"client":   c.clientName,
		"type":     eventType,
		"hostname": c.hostname,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/0/buckets/%s", c.baseURL, bucketID)
	resp, err := c.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotModified {
		return fmt.Errorf("create bucket %s: unexpected status %s", bucketID, resp.Status)
	}
	return nil
}

// InsertEvent appends one event to the bucket.
func (c *Client) InsertEvent(bucketID string, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/0/buckets/%s/events", c.baseURL, bucketID)
	resp, err := c.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("insert event into %s: %w", bucketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("insert event into %s: unexpected status %s", bucketID, resp.Status)
	}
	return nil
}

// Buckets lists every bucket known to the server, keyed by bucket id.
func (c *Client) Buckets() (map[string]Bucket, error) {
	var buckets map[string]Bucket
	if err := c.get("/api/0/buckets/", &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// Events returns all events stored in the bucket, newest first.
func (c *Client) Events(bucketID string) ([]RawEvent, error) {
	var events []RawEvent
	path := fmt.Sprintf("/api/0/buckets/%s/events", bucketID)
	if err := c.get(path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// RawEvent keeps the data payload untyped; buckets read back for export
// may contain records written by older watcher versions.
type RawEvent struct {
	ID        int                    `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  float64                `json:"duration"`
	Data      map[string]interface{} `json:"data"`
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
