package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// pageSize bounds every list request; callers must follow page tokens.
const pageSize = 100

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit limits the client to rps API calls per second. A value of
// zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	c := &Client{
		service: service,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("Google: rate limiter: %w", err)
	}
	return nil
}

// ListACL returns every access control rule of the calendar.
func (c *Client) ListACL(ctx context.Context, calendarID string) ([]*calendar.AclRule, error) {
	var rules []*calendar.AclRule
	pageToken := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		call := c.service.Acl.List(calendarID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		acl, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("Google: failed to list ACL: %w", err)
		}
		rules = append(rules, acl.Items...)

		pageToken = acl.NextPageToken
		if pageToken == "" {
			return rules, nil
		}
	}
}

// ListFutureEventIDs returns the ids of all events starting at or after now.
// Only ids are requested from the API.
func (c *Client) ListFutureEventIDs(ctx context.Context, calendarID string, now time.Time) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	pageToken := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		call := c.service.Events.List(calendarID).
			TimeMin(now.Format(time.RFC3339)).
			MaxResults(pageSize).
			Fields("nextPageToken", "items(id)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("Google: failed to list events: %w", err)
		}
		for _, event := range events.Items {
			ids[event.Id] = struct{}{}
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// InsertEvent inserts a new event into a calendar. The event id must be set
// by the caller so later runs can recognize it.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// UpdateEvent replaces an existing event in a calendar.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.service.Events.Update(calendarID, eventID, event).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

// StatusCode returns the HTTP status of a Google API error wrapped in err,
// or 0 if err does not carry one.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
