// Package rpcjson serves JSON-RPC 2.0 over a unix socket for the command line client.
package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"go.uber.org/zap"
)

// Error codes returned next to the standard JSON-RPC ones.
const (
	CodeInvalid      = 40000
	CodeUnauthorized = 40100
	CodeForbidden    = 40300
	CodeNotFound     = 40400
	CodeInternal     = 50000
)

type Services struct {
	App      *application.ApplicationService
	Meta     *application.MetadataService
	Business *application.BusinessService
	Physical *application.PhysicalConnectionsService
	Mirrors  *application.MirrorService
	Actions  *actions.Registry
}

type Server struct {
	Services
	listener net.Listener
	path     string
	log      *zap.Logger
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, s Services, log *zap.Logger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	srv := &Server{Services: s, listener: ln, path: path, log: log.Named("rpc")}
	go srv.serve()
	return srv, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// method handles one call for an authenticated identity.
type method struct {
	permission string
	call       func(ctx context.Context, identity domain.Identity, params json.RawMessage) (any, error)
}

func (s *Server) methods() map[string]method {
	read, write := domain.PermissionInventoryRead, domain.PermissionInventoryWrite
	return map[string]method{
		"auth.whoami":      {permission: "", call: s.whoami},
		"classes.list":     {permission: read, call: s.listClasses},
		"objects.get":      {permission: read, call: s.getObject},
		"objects.children": {permission: read, call: s.children},
		"objects.search":   {permission: read, call: s.search},
		"actions.list":     {permission: read, call: s.listActions},
		"actions.execute":  {permission: write, call: s.execute},
		"physical.path":    {permission: read, call: s.physicalPath},
		"physical.tree":    {permission: read, call: s.physicalTree},
		"mirrors.list":     {permission: read, call: s.listMirrors},
		"mirrors.suggest":  {permission: read, call: s.suggestMirrors},
		"activity.list":    {permission: read, call: s.listActivity},
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}
	if req.Method == "auth.login" {
		return s.handleAuthLogin(ctx, req)
	}

	m, ok := s.methods()[req.Method]
	if !ok {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
	identity, rpcResp, ok := s.authz(ctx, req, m.permission)
	if !ok {
		return rpcResp
	}
	result, err := m.call(ctx, identity, req.Params)
	if err != nil {
		return s.appError(req, err)
	}
	return response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.App.LoginWithAPIToken(ctx, p.Email, p.Password, defaultString(p.TokenName, "cli"), nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: CodeUnauthorized, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.App.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: CodeUnauthorized, Message: "unauthorized"}, ID: req.ID}, false
	}
	if permission != "" && !s.App.Can(identity, permission) {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: CodeForbidden, Message: "forbidden"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func (s *Server) whoami(_ context.Context, identity domain.Identity, _ json.RawMessage) (any, error) {
	return map[string]any{"id": identity.User.ID, "email": identity.User.Email}, nil
}

func (s *Server) listClasses(_ context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Q        string `json:"q"`
		Abstract bool   `json:"abstract"`
		Limit    int    `json:"limit"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Meta.ListClasses(p.Q, p.Abstract, p.Limit), nil
}

type objectRef struct {
	Class string `json:"class"`
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

func (s *Server) getObject(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p objectRef
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Business.GetObject(ctx, p.Class, p.ID)
}

func (s *Server) children(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		objectRef
		Special bool `json:"special"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	if p.Special {
		return s.Business.GetSpecialChildren(ctx, p.Class, p.ID, p.Limit)
	}
	return s.Business.GetChildren(ctx, p.Class, p.ID, p.Limit)
}

func (s *Server) search(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Class string `json:"class"`
		Q     string `json:"q"`
		Limit int    `json:"limit"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Business.SearchObjects(ctx, p.Class, p.Q, p.Limit)
}

func (s *Server) listActions(_ context.Context, identity domain.Identity, _ json.RawMessage) (any, error) {
	return s.Actions.List(identity), nil
}

func (s *Server) execute(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Action     string             `json:"action"`
		Parameters actions.Parameters `json:"parameters"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	if p.Action == "" {
		return nil, domain.InvalidArgumentf("action is required")
	}
	return s.Actions.Execute(ctx, identity, p.Action, p.Parameters)
}

func (s *Server) physicalPath(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p objectRef
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Physical.GetPhysicalPath(ctx, p.Class, p.ID)
}

func (s *Server) physicalTree(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p objectRef
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Physical.GetPhysicalTree(ctx, p.Class, p.ID)
}

func (s *Server) listMirrors(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p objectRef
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.Mirrors.ListMirrors(ctx, p.Class, p.ID)
}

func (s *Server) suggestMirrors(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		objectRef
		Multiple bool `json:"multiple"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	if p.Multiple {
		return s.Mirrors.SuggestFreePortMultipleMirrors(ctx, p.Class, p.ID)
	}
	return s.Mirrors.SuggestFreePortMirrors(ctx, p.Class, p.ID)
}

func (s *Server) listActivity(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ObjectID string `json:"object_id"`
		Type     string `json:"type"`
		Limit    int    `json:"limit"`
	}
	if err := params(raw, &p); err != nil {
		return nil, err
	}
	return s.App.ListActivity(ctx, domain.ActivityQuery{ObjectID: p.ObjectID, Type: p.Type, Limit: p.Limit})
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func params(raw json.RawMessage, out any) error {
	if !decodeParams(raw, out) {
		return domain.InvalidArgumentf("invalid params")
	}
	return nil
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func (s *Server) appError(req request, err error) response {
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = CodeInvalid
	case errors.Is(err, domain.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, domain.ErrOperationNotPermitted), errors.Is(err, domain.ErrUnauthorized):
		code = CodeForbidden
	}
	message := err.Error()
	if code == CodeInternal {
		s.log.Error("rpc call failed", zap.String("method", req.Method), zap.Error(err))
		message = fmt.Sprintf("internal error: %v", err)
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: message}, ID: req.ID}
}
