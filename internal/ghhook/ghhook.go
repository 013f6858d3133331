// Package ghhook registers autopull endpoints as push webhooks on GitHub
// repositories.
package ghhook

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Request describes the webhook to create.
type Request struct {
	Owner  string
	Repo   string
	URL    string
	Secret string
}

// Result reports what Register did.
type Result struct {
	HookID  int64
	Created bool // false when a hook with the same URL already existed
}

// NewClient creates a GitHub client. An empty token gives an anonymous
// client, which cannot manage webhooks.
func NewClient(ctx context.Context, token string) *github.Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(ctx, ts)
	}
	return github.NewClient(hc)
}

// HookURL joins the public base URL with the hook path of key.
func HookURL(baseURL, namespace, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + namespace + "/" + key
}

// Register creates a JSON push webhook for req.URL, unless the repository
// already has a hook pointing at the same URL.
func Register(ctx context.Context, client *github.Client, req Request) (*Result, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := client.Repositories.ListHooks(ctx, req.Owner, req.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing webhooks: %w", err)
		}

		for _, hook := range hooks {
			if hook.Config == nil {
				continue
			}
			if url, ok := hook.Config["url"].(string); ok && url == req.URL {
				return &Result{HookID: hook.GetID()}, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hookConfig := map[string]interface{}{
		"url":          req.URL,
		"content_type": "json",
		"insecure_ssl": "0",
	}
	if req.Secret != "" {
		hookConfig["secret"] = req.Secret
	}

	active := true
	hookReq := &github.Hook{
		Events: []string{"push"},
		Active: &active,
		Config: hookConfig,
	}

	hook, _, err := client.Repositories.CreateHook(ctx, req.Owner, req.Repo, hookReq)
	if err != nil {
		return nil, fmt.Errorf("creating webhook: %w", err)
	}

	return &Result{HookID: hook.GetID(), Created: true}, nil
}
