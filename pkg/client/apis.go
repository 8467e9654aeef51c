package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/aipc-tools/powerd/pkg/events"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

func (c *Client) GetStatus() (*powerinfo.Status, error) {
	ret, err := c.Get("/api/power/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get power status")
	}

	var st powerinfo.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal power status")
	}
	return &st, nil
}

// SetPlan asks the daemon to activate plan. A plan the OS refused is not an
// error here: check Success on the response.
func (c *Client) SetPlan(plan powerplan.Plan) (*powerinfo.SetPlanResponse, error) {
	payload, err := json.Marshal(powerinfo.SetPlanRequest{Plan: string(plan)})
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/api/power/set-plan", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set power plan")
	}

	var resp powerinfo.SetPlanResponse
	if err := json.Unmarshal([]byte(ret), &resp); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal set-plan response")
	}
	return &resp, nil
}

func (c *Client) SetMode(mode powerplan.Mode) (*powerinfo.SetModeResponse, error) {
	payload, err := json.Marshal(powerinfo.SetModeRequest{Mode: string(mode)})
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/api/power/set-mode", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set power mode")
	}

	var resp powerinfo.SetModeResponse
	if err := json.Unmarshal([]byte(ret), &resp); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal set-mode response")
	}
	return &resp, nil
}

func (c *Client) GetHealth() (*powerinfo.Health, error) {
	ret, err := c.Get("/health")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get health")
	}

	var h powerinfo.Health
	if err := json.Unmarshal([]byte(ret), &h); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal health")
	}
	return &h, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

// WatchEvents streams daemon events until ctx is done or the connection
// drops. The returned channel is closed when the stream ends.
func (c *Client) WatchEvents(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/power/events", nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client has a timeout, which would cut the stream.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		if isConnRefused(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, pkgerrors.Wrapf(err, "failed to subscribe to events")
	}
	if err := statusError(resp.StatusCode, nil); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}

	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		readEvents(ctx, bufio.NewScanner(resp.Body), ch)
	}()

	return ch, nil
}

// readEvents parses an SSE stream of "event:" and "data:" lines.
func readEvents(ctx context.Context, sc *bufio.Scanner, out chan<- events.Event) {
	var ev events.Event
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.Name == "" {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			ev = events.Event{}
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = append(ev.Data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		}
	}
}
