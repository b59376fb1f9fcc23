package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"linkstake/native/stakes"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "LINKSTAKE_RPC_TOKEN"
)

const (
	codeParseError          = -32700
	codeInvalidRequest      = -32600
	codeMethodNotFound      = -32601
	codeInvalidParams       = -32602
	codeServerError         = -32000
	codeUnauthorized        = -32001
	codeNotFound            = -32004
	codeRateLimited         = -32020
	codeModulePaused        = -32030
	codeStateConflict       = -32040
	codeTransferFailed      = -32050
	codeInsufficientReserve = -32060
)

// Config tunes the RPC server.
type Config struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server exposes the stakes engine over JSON-RPC and streams its events over
// websocket.
type Server struct {
	engine *stakes.Engine
	log    *slog.Logger
	hub    *EventHub

	authToken string

	limiterMu  sync.Mutex
	limiters   map[string]*rate.Limiter
	limitRate  rate.Limit
	limitBurst int
}

// NewServer builds an RPC server around the engine. The bearer token for
// mutating methods comes from the LINKSTAKE_RPC_TOKEN environment variable;
// when unset, mutating methods are open (dev mode) and a warning is logged.
func NewServer(engine *stakes.Engine, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	if token == "" {
		logger.Warn("rpc auth token not configured; mutating methods are unauthenticated")
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	return &Server{
		engine:     engine,
		log:        logger,
		hub:        newEventHub(),
		authToken:  token,
		limiters:   make(map[string]*rate.Limiter),
		limitRate:  rate.Limit(cfg.RateLimitPerSecond),
		limitBurst: cfg.RateLimitBurst,
	}
}

// Hub returns the emitter that fans engine events out to websocket
// subscribers. Wire it into the engine's emitter chain.
func (s *Server) Hub() *EventHub { return s.hub }

// Handler assembles the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/rpc", s.handleRPC)
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps the engine's error taxonomy onto JSON-RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, stakes.ErrCreationPaused):
		writeError(w, http.StatusServiceUnavailable, id, codeModulePaused, err.Error(), nil)
	case errors.Is(err, stakes.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, err.Error(), nil)
	case errors.Is(err, stakes.ErrValidation):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, stakes.ErrAuthorization):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, stakes.ErrState):
		writeError(w, http.StatusConflict, id, codeStateConflict, err.Error(), nil)
	case errors.Is(err, stakes.ErrTransfer):
		writeError(w, http.StatusBadGateway, id, codeTransferFailed, err.Error(), nil)
	case errors.Is(err, stakes.ErrResource):
		writeError(w, http.StatusConflict, id, codeInsufficientReserve, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	source := s.clientSource(r)
	if !s.allowSource(source) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", source)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if mutatingMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, authErr.Error(), nil)
			return
		}
	}
	handler(w, &req)
}

type methodHandler func(http.ResponseWriter, *RPCRequest)

var mutatingMethods = map[string]bool{
	"stake_create":            true,
	"stake_resolveSuccessful": true,
	"stake_resolveFailed":     true,
	"stake_slash":             true,
	"stake_withdraw":          true,
	"stake_claimRewards":      true,
	"stake_updateParams":      true,
	"stake_fundReserve":       true,
	"stake_emergencyWithdraw": true,
	"stake_setCreationPaused": true,
	"stake_addSlasher":        true,
	"stake_removeSlasher":     true,
	"stake_transferOwnership": true,
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"stake_create":            s.handleCreate,
		"stake_resolveSuccessful": s.handleResolveSuccessful,
		"stake_resolveFailed":     s.handleResolveFailed,
		"stake_slash":             s.handleSlash,
		"stake_withdraw":          s.handleWithdraw,
		"stake_claimRewards":      s.handleClaimRewards,
		"stake_updateParams":      s.handleUpdateParams,
		"stake_fundReserve":       s.handleFundReserve,
		"stake_emergencyWithdraw": s.handleEmergencyWithdraw,
		"stake_setCreationPaused": s.handleSetCreationPaused,
		"stake_addSlasher":        s.handleAddSlasher,
		"stake_removeSlasher":     s.handleRemoveSlasher,
		"stake_transferOwnership": s.handleTransferOwnership,
		"stake_get":               s.handleGetStake,
		"stake_listByReference":   s.handleListByReference,
		"stake_listByParticipant": s.handleListByParticipant,
		"stake_participantStats":  s.handleParticipantStats,
		"stake_totals":            s.handleTotals,
		"stake_params":            s.handleParams,
	}
}

func (s *Server) requireAuth(r *http.Request) error {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return errors.New("invalid bearer token")
	}
	return nil
}

func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allowSource(source string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.limitRate, s.limitBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}
