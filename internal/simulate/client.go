package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/types"
)

// submission is the POST /results payload.
type submission struct {
	SubmissionID string            `json:"submission_id"`
	RoundID      string            `json:"round_id"`
	PersonID     string            `json:"person_id"`
	EventID      string            `json:"event_id"`
	Attempts     []int             `json:"attempts"`
	Format       model.EventFormat `json:"format"`
	Cutoff       *model.Cutoff     `json:"cutoff,omitempty"`
	TimeLimit    *model.TimeLimit  `json:"time_limit,omitempty"`
	Confirmed    bool              `json:"confirmed"`
}

func newSubmission(id string, e model.Entry) submission { //nolint:gocritic // hugeParam
	return submission{
		SubmissionID: id,
		RoundID:      e.RoundID,
		PersonID:     e.PersonID,
		EventID:      e.EventID,
		Attempts:     attempt.Ints(e.Attempts),
		Format:       e.Format,
		Cutoff:       e.Cutoff,
		TimeLimit:    e.TimeLimit,
		Confirmed:    true,
	}
}

// ackResponse is the POST /results response.
type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// client talks to the results API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// health checks that the service answers on /healthz.
func (c *client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: /healthz %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// submit posts a submission and returns the status the service reported.
func (c *client) submit(ctx context.Context, s submission) (ackResponse, error) { //nolint:gocritic // hugeParam
	body, err := json.Marshal(s)
	if err != nil {
		return ackResponse{}, fmt.Errorf("marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/results", bytes.NewReader(body))
	if err != nil {
		return ackResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ackResponse{}, fmt.Errorf("post submission: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ackResponse{}, fmt.Errorf("%w: /results %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var ack ackResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return ackResponse{}, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

func (c *client) rounds(ctx context.Context) ([]types.Round, error) {
	var out []types.Round
	if err := c.getJSON(ctx, "/rounds", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) roundResults(ctx context.Context, roundID string, limit int) ([]types.Row, error) {
	var out []types.Row
	path := "/rounds/" + url.PathEscape(roundID) + "/results?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) rank(ctx context.Context, roundID, personID string) (types.Row, error) {
	var out types.Row
	path := "/rank/" + url.PathEscape(roundID) + "/" + url.PathEscape(personID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return types.Row{}, err
	}
	return out, nil
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
