package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"schedcal/core/logger"
	"schedcal/core/model"
)

var (
	errMissingToken = errors.New("monday: api token required")
	errMissingBoard = errors.New("monday: board id required")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Client pushes scheduled appointments back to a monday.com board via the
// GraphQL API. Each appointment updates the date and hour columns of the
// board item whose id matches the appointment's request id.
type Client struct {
	cfg    Config
	log    logger.Logger
	client *http.Client
}

// NewClient creates a monday.com API client.
func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishSchedule writes every scheduled appointment to the board. Failures
// on individual items are logged and do not abort the rest of the batch;
// the last error is returned.
func (c *Client) PublishSchedule(ctx context.Context, scheduled []model.ScheduledAppointment) error {
	var lastErr error
	for _, app := range scheduled {
		if err := c.updateItem(ctx, app); err != nil {
			c.log.Errorf("monday update failed for item %s: %v", app.RequestID, err)
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) updateItem(ctx context.Context, app model.ScheduledAppointment) error {
	dateValue := fmt.Sprintf(`{"date": %q}`, app.Start.Format(dateLayout))
	if err := c.changeColumnValue(ctx, app.RequestID, c.cfg.DateColumnID, dateValue); err != nil {
		return err
	}
	timeValue := fmt.Sprintf(`{"hour": %d, "minute": %d}`, app.Start.Hour(), app.Start.Minute())
	return c.changeColumnValue(ctx, app.RequestID, c.cfg.TimeColumnID, timeValue)
}

func (c *Client) changeColumnValue(ctx context.Context, itemID, columnID, value string) error {
	quoted, err := json.Marshal(value)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`mutation { change_column_value (board_id: %d, item_id: %s, column_id: %q, value: %s) { id } }`,
		c.cfg.BoardID, itemID, columnID, quoted)
	return c.post(ctx, query)
}

func (c *Client) post(ctx context.Context, query string) error {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		lastErr = c.doRequest(ctx, body)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monday: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("monday: decode response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return fmt.Errorf("monday: api error: %s", payload.Errors[0].Message)
	}
	return nil
}
