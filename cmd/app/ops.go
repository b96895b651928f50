package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

// remote talks to a running server over the unix socket or the HTTP API.
type remote struct {
	cfg cliConfig
	rpc *rpcClient
	api *apiClient
}

func newRemote(cfg cliConfig) *remote {
	return &remote{cfg: cfg, rpc: newRPCClient(cfg.Socket), api: newAPIClient(cfg.Server, cfg.Token)}
}

func (r *remote) uds() bool { return r.cfg.Transport == "uds" }

func (r *remote) Close() error { return r.rpc.Close() }

// params adds the stored token to RPC parameters.
func (r *remote) params(kv map[string]any) map[string]any {
	out := map[string]any{"token": r.cfg.Token}
	for k, v := range kv {
		out[k] = v
	}
	return out
}

type loginResult struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (r *remote) login(ctx context.Context, email, password, tokenName string) (loginResult, error) {
	var out loginResult
	if r.uds() {
		err := r.rpc.call(ctx, "auth.login", map[string]any{"email": email, "password": password, "token_name": tokenName}, &out)
		return out, err
	}
	err := r.api.request(ctx, http.MethodPost, "/api/auth/login", nil, map[string]any{
		"email": email, "password": password, "mode": "token", "token_name": tokenName,
	}, &out)
	return out, err
}

func (r *remote) whoami(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if r.uds() {
		return out, r.rpc.call(ctx, "auth.whoami", r.params(nil), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/auth/whoami", nil, nil, &out)
}

func (r *remote) logout(ctx context.Context) error {
	if r.uds() {
		return nil
	}
	return r.api.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

func (r *remote) classes(ctx context.Context, q string, abstract bool) ([]domain.ClassMetadata, error) {
	var out []domain.ClassMetadata
	if r.uds() {
		return out, r.rpc.call(ctx, "classes.list", r.params(map[string]any{"q": q, "abstract": abstract}), &out)
	}
	query := url.Values{"q": {q}, "abstract": {strconv.FormatBool(abstract)}}
	return out, r.api.request(ctx, http.MethodGet, "/api/classes", query, nil, &out)
}

func (r *remote) object(ctx context.Context, id string) (domain.BusinessObject, error) {
	var out domain.BusinessObject
	if r.uds() {
		return out, r.rpc.call(ctx, "objects.get", r.params(map[string]any{"id": id}), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/objects/"+url.PathEscape(id), nil, nil, &out)
}

func (r *remote) children(ctx context.Context, id string, special bool) ([]domain.BusinessObject, error) {
	var out []domain.BusinessObject
	if r.uds() {
		return out, r.rpc.call(ctx, "objects.children", r.params(map[string]any{"id": id, "special": special}), &out)
	}
	query := url.Values{"special": {strconv.FormatBool(special)}}
	return out, r.api.request(ctx, http.MethodGet, "/api/objects/"+url.PathEscape(id)+"/children", query, nil, &out)
}

func (r *remote) search(ctx context.Context, class, q string, limit int) ([]domain.BusinessObject, error) {
	var out []domain.BusinessObject
	if r.uds() {
		return out, r.rpc.call(ctx, "objects.search", r.params(map[string]any{"class": class, "q": q, "limit": limit}), &out)
	}
	query := url.Values{"class": {class}, "q": {q}, "limit": {strconv.Itoa(limit)}}
	return out, r.api.request(ctx, http.MethodGet, "/api/objects", query, nil, &out)
}

func (r *remote) listActions(ctx context.Context) ([]actions.Action, error) {
	var out []actions.Action
	if r.uds() {
		return out, r.rpc.call(ctx, "actions.list", r.params(nil), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/actions", nil, nil, &out)
}

// run executes an action. The payload is left as decoded JSON.
func (r *remote) run(ctx context.Context, actionID string, params actions.Parameters) (actions.Response, error) {
	var out actions.Response
	if r.uds() {
		err := r.rpc.call(ctx, "actions.execute", r.params(map[string]any{"action": actionID, "parameters": params}), &out)
		return out, err
	}
	return out, r.api.request(ctx, http.MethodPost, "/api/actions/"+url.PathEscape(actionID), nil, params, &out)
}

func (r *remote) physicalPath(ctx context.Context, id string) (domain.PhysicalPath, error) {
	var out domain.PhysicalPath
	if r.uds() {
		return out, r.rpc.call(ctx, "physical.path", r.params(map[string]any{"id": id}), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/physical/"+url.PathEscape(id)+"/path", nil, nil, &out)
}

func (r *remote) physicalTree(ctx context.Context, id string) ([]domain.PhysicalTreeNode, error) {
	var out []domain.PhysicalTreeNode
	if r.uds() {
		return out, r.rpc.call(ctx, "physical.tree", r.params(map[string]any{"id": id}), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/physical/"+url.PathEscape(id)+"/tree", nil, nil, &out)
}

func (r *remote) mirrors(ctx context.Context, deviceID string) ([]application.PortMirrors, error) {
	var out []application.PortMirrors
	if r.uds() {
		return out, r.rpc.call(ctx, "mirrors.list", r.params(map[string]any{"id": deviceID}), &out)
	}
	return out, r.api.request(ctx, http.MethodGet, "/api/mirrors/"+url.PathEscape(deviceID), nil, nil, &out)
}

func (r *remote) suggest(ctx context.Context, deviceID string, multiple bool, out any) error {
	if r.uds() {
		return r.rpc.call(ctx, "mirrors.suggest", r.params(map[string]any{"id": deviceID, "multiple": multiple}), out)
	}
	query := url.Values{"multiple": {strconv.FormatBool(multiple)}}
	return r.api.request(ctx, http.MethodGet, "/api/mirrors/"+url.PathEscape(deviceID)+"/suggestions", query, nil, out)
}

func (r *remote) activity(ctx context.Context, objectID, activityType string, limit int) ([]domain.ActivityLogEntry, error) {
	var out []domain.ActivityLogEntry
	if r.uds() {
		return out, r.rpc.call(ctx, "activity.list", r.params(map[string]any{"object_id": objectID, "type": activityType, "limit": limit}), &out)
	}
	query := url.Values{"object": {objectID}, "type": {activityType}, "limit": {strconv.Itoa(limit)}}
	return out, r.api.request(ctx, http.MethodGet, "/api/activity", query, nil, &out)
}
