// Package crmclient is a Go client for the CRM REST API. Store adds a local
// cache with optimistic deletes on top of Client.
package crmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wolfman30/dentalcrm/internal/messaging"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// Options configures a Client.
type Options struct {
	Token   string
	Timeout time.Duration
	Logger  *logging.Logger
}

// Client calls the /api endpoints and unwraps the response envelope.
// Nothing is retried.
type Client struct {
	http   *resty.Client
	logger *logging.Logger
}

func New(baseURL string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/api").
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		hc.SetAuthToken(opts.Token)
	}
	return &Client{http: hc, logger: opts.Logger}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var env envelope
	req := c.http.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("crmclient: %s %s: %w", method, path, err)
	}
	if resp.IsError() || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Field = env.Error.Field
		}
		c.logger.Debug("crm api error", "method", method, "path", path, "status", apiErr.Status, "code", apiErr.Code)
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("crmclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// PatientQuery filters ListPatients. Zero values are omitted.
type PatientQuery struct {
	Phase  patients.Phase
	Status patients.Status
	Query  string
	From   *patients.Date
	To     *patients.Date
	Limit  int
	Offset int
}

func (q PatientQuery) values() url.Values {
	v := url.Values{}
	if q.Phase != "" {
		v.Set("phase", string(q.Phase))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.From != nil {
		v.Set("from", q.From.String())
	}
	if q.To != nil {
		v.Set("to", q.To.String())
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (c *Client) ListPatients(ctx context.Context, q PatientQuery) (*patients.ListResponse, error) {
	var out patients.ListResponse
	if err := c.do(ctx, http.MethodGet, "/patients", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*patients.Patient, error) {
	var out patients.Patient
	if err := c.do(ctx, http.MethodGet, "/patients/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePatient(ctx context.Context, req patients.CreateRequest) (*patients.Patient, error) {
	var out patients.Patient
	if err := c.do(ctx, http.MethodPost, "/patients", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePatient(ctx context.Context, id string, req patients.UpdateRequest) (*patients.Patient, error) {
	var out patients.Patient
	if err := c.do(ctx, http.MethodPut, "/patients/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/patients/"+url.PathEscape(id), nil, nil, nil)
}

// UpdateStatus runs a lifecycle action such as confirm-reservation or hold.
func (c *Client) UpdateStatus(ctx context.Context, id string, cmd patients.Command) (*patients.Patient, error) {
	var out patients.Patient
	if err := c.do(ctx, http.MethodPut, "/patients/"+url.PathEscape(id)+"/status", nil, cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddCallback(ctx context.Context, id string, typ patients.CallbackType, rec patients.CallbackRecord) (*patients.Patient, error) {
	body := struct {
		Type patients.CallbackType `json:"type"`
		patients.CallbackRecord
	}{Type: typ, CallbackRecord: rec}
	var out patients.Patient
	if err := c.do(ctx, http.MethodPost, "/patients/"+url.PathEscape(id)+"/callback", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DueCallbacks(ctx context.Context, day *patients.Date) ([]patients.DueCallback, error) {
	var q url.Values
	if day != nil {
		q = url.Values{"date": {day.String()}}
	}
	var out []patients.DueCallback
	if err := c.do(ctx, http.MethodGet, "/callbacks/due", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTemplates(ctx context.Context, f templates.TemplateFilter) ([]*templates.Template, error) {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("categoryId", f.CategoryID)
	}
	if f.MessageType != "" {
		q.Set("messageType", string(f.MessageType))
	}
	var out []*templates.Template
	if err := c.do(ctx, http.MethodGet, "/templates", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTemplate(ctx context.Context, in templates.TemplateInput) (*templates.Template, error) {
	var out templates.Template
	if err := c.do(ctx, http.MethodPost, "/templates", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/templates/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) PreviewTemplate(ctx context.Context, id string, req templates.PreviewRequest) (*templates.Preview, error) {
	var out templates.Preview
	if err := c.do(ctx, http.MethodPost, "/templates/"+url.PathEscape(id)+"/preview", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]*templates.Category, error) {
	var out []*templates.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, in templates.CategoryInput) (*templates.Category, error) {
	var out templates.Category
	if err := c.do(ctx, http.MethodPost, "/categories", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) (*templates.DeleteResult, error) {
	var out templates.DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage sends a templated or raw message. A repeat inside the dedup
// window comes back with Duplicate set and no error.
func (c *Client) SendMessage(ctx context.Context, req messaging.SendRequest) (*messaging.SendResult, error) {
	var out messaging.SendResult
	if err := c.do(ctx, http.MethodPost, "/messages/send", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
