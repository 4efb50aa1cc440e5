package fieldlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fieldline HTTP API client.
type Client struct {
	BaseURL     string
	TenantID    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, tenantID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		TenantID: tenantID,
		Timeout:  10 * time.Second,
	}
}

// Job represents the API job model (partial).
type Job struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	ContactID    *string `json:"contact_id,omitempty"`
	ServiceID    *string `json:"service_id,omitempty"`
	RecurrenceID *string `json:"recurrence_id,omitempty"`
	Title        string  `json:"title"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	Status       string  `json:"status"`
}

// Recurrence represents a repeating pattern.
type Recurrence struct {
	ID         string  `json:"id"`
	Frequency  string  `json:"frequency"`
	Interval   int     `json:"interval"`
	Count      *int    `json:"count,omitempty"`
	UntilDate  *string `json:"until_date,omitempty"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
}

// Contact represents a tenant's client.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Slot is one open booking window.
type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// DayAvailability groups open slots per date.
type DayAvailability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// ScheduleResult is the response to creating a job.
type ScheduleResult struct {
	Jobs       []Job       `json:"jobs"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// BookingResult is the response to booking a slot.
type BookingResult struct {
	Jobs       []Job       `json:"jobs"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Contact    Contact     `json:"contact"`
	Status     string      `json:"status"`
}

// RecurrenceSpec describes a repeating booking pattern in requests.
type RecurrenceSpec struct {
	Frequency  string  `json:"frequency"`
	Interval   int     `json:"interval,omitempty"`
	Count      *int    `json:"count,omitempty"`
	UntilDate  *string `json:"until_date,omitempty"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateJob schedules a job for the client's tenant.
func (c *Client) CreateJob(ctx context.Context, title string, start, end *time.Time, rec *RecurrenceSpec) (ScheduleResult, error) {
	body := map[string]any{"title": title}
	if start != nil {
		body["start_time"] = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		body["end_time"] = end.UTC().Format(time.RFC3339)
	}
	if rec != nil {
		body["recurrence"] = rec
	}
	var resp ScheduleResult
	err := c.do(ctx, http.MethodPost, c.tenantPath("jobs"), body, &resp)
	return resp, err
}

// ListJobs returns the tenant's jobs.
func (c *Client) ListJobs(ctx context.Context, status string) ([]Job, error) {
	endpoint := c.tenantPath("jobs")
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	var resp []Job
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ConfirmJob confirms a pending booking.
func (c *Client) ConfirmJob(ctx context.Context, jobID string) (Job, error) {
	var resp Job
	endpoint := c.tenantPath(fmt.Sprintf("jobs/%s/confirm", url.PathEscape(jobID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// DeclineJob declines a pending booking.
func (c *Client) DeclineJob(ctx context.Context, jobID string) (Job, error) {
	var resp Job
	endpoint := c.tenantPath(fmt.Sprintf("jobs/%s/decline", url.PathEscape(jobID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// GetAvailability returns open slots for a public service link.
func (c *Client) GetAvailability(ctx context.Context, serviceID string, from, to *time.Time) ([]DayAvailability, error) {
	endpoint := fmt.Sprintf("v1/public/services/%s/availability", url.PathEscape(serviceID))
	params := url.Values{}
	if from != nil {
		params.Set("from", from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		params.Set("to", to.UTC().Format(time.RFC3339))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []DayAvailability
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// BookSlot books a public slot with inline contact details.
func (c *Client) BookSlot(ctx context.Context, serviceID string, start time.Time, name, email string, rec *RecurrenceSpec) (BookingResult, error) {
	body := map[string]any{
		"start_time": start.UTC().Format(time.RFC3339),
		"contact":    map[string]string{"name": name, "email": email},
	}
	if rec != nil {
		body["recurrence"] = rec
	}
	var resp BookingResult
	endpoint := fmt.Sprintf("v1/public/services/%s/book", url.PathEscape(serviceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) tenantPath(p string) string {
	tenant := url.PathEscape(c.TenantID)
	return fmt.Sprintf("v1/tenants/%s/%s", tenant, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
