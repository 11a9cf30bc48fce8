package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.github.com"
	perPage        = 100
)

var ErrWorkflowNotFound = errors.New("workflow not found")

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
	}
}

func (c *Client) ListHooks(ctx context.Context, repo Repository) ([]Hook, error) {
	var all []Hook
	for page := 1; ; page++ {
		var hooks []Hook
		path := fmt.Sprintf("/repos/%s/%s/hooks?per_page=%d&page=%d", repo.Owner, repo.Name, perPage, page)
		if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &hooks); err != nil {
			return nil, fmt.Errorf("list hooks: %w", err)
		}
		all = append(all, hooks...)
		if len(hooks) < perPage {
			return all, nil
		}
	}
}

func (c *Client) CreateHook(ctx context.Context, repo Repository, req CreateHookRequest) (*Hook, error) {
	var hook Hook
	path := fmt.Sprintf("/repos/%s/%s/hooks", repo.Owner, repo.Name)
	if _, err := c.doJSON(ctx, http.MethodPost, path, req, &hook); err != nil {
		return nil, fmt.Errorf("create hook: %w", err)
	}
	return &hook, nil
}

// EnsureWebhook makes sure repo has a hook delivering to tunnelURL + "/events".
// An existing hook with the same target is returned as is; created reports
// whether a new hook was made.
func (c *Client) EnsureWebhook(ctx context.Context, repo Repository, tunnelURL, secret string, events []string) (hook *Hook, created bool, err error) {
	target := WebhookTarget(tunnelURL)

	hooks, err := c.ListHooks(ctx, repo)
	if err != nil {
		return nil, false, err
	}
	for i := range hooks {
		if hooks[i].Config.URL == target {
			slog.Debug("found existing webhook", "repo", repo.String(), "id", hooks[i].ID, "url", target)
			return &hooks[i], false, nil
		}
	}

	slog.Debug("creating webhook", "repo", repo.String(), "url", target, "events", events)
	hook, err = c.CreateHook(ctx, repo, CreateHookRequest{
		Name:   "web",
		Active: true,
		Events: events,
		Config: HookConfig{
			URL:         target,
			ContentType: "json",
			Secret:      secret,
		},
	})
	if err != nil {
		return nil, false, err
	}
	return hook, true, nil
}

func WebhookTarget(tunnelURL string) string {
	return strings.TrimRight(tunnelURL, "/") + "/events"
}

func (c *Client) ListWorkflows(ctx context.Context, repo Repository) ([]Workflow, error) {
	var all []Workflow
	for page := 1; ; page++ {
		var list workflowList
		path := fmt.Sprintf("/repos/%s/%s/actions/workflows?per_page=%d&page=%d", repo.Owner, repo.Name, perPage, page)
		if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}
		all = append(all, list.Workflows...)
		if len(list.Workflows) < perPage {
			return all, nil
		}
	}
}

// FindWorkflow returns the first workflow whose name equals name or whose
// path ends with name (e.g. "ci.yml" or ".github/workflows/ci.yml").
func (c *Client) FindWorkflow(ctx context.Context, repo Repository, name string) (*Workflow, error) {
	workflows, err := c.ListWorkflows(ctx, repo)
	if err != nil {
		return nil, err
	}
	if wf := MatchWorkflow(workflows, name); wf != nil {
		return wf, nil
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrWorkflowNotFound, name, repo)
}

func MatchWorkflow(workflows []Workflow, name string) *Workflow {
	if name == "" {
		return nil
	}
	for i := range workflows {
		if workflows[i].Name == name || strings.HasSuffix(workflows[i].Path, name) {
			return &workflows[i]
		}
	}
	return nil
}

func (c *Client) DispatchWorkflow(ctx context.Context, repo Repository, workflowID int64, ref string, inputs map[string]string) error {
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%d/dispatches", repo.Owner, repo.Name, workflowID)
	req := DispatchRequest{Ref: ref}
	if len(inputs) > 0 {
		req.Inputs = inputs
	}
	status, err := c.doJSON(ctx, http.MethodPost, path, req, nil)
	if err != nil {
		return fmt.Errorf("dispatch workflow %d: %w", workflowID, err)
	}
	slog.Debug("workflow dispatch accepted", "repo", repo.String(), "workflow_id", workflowID, "ref", ref, "status", status)
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
