package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"amanahchain/audit"
	"amanahchain/core/state"
	"amanahchain/native/certificate"
	"amanahchain/native/donation"
	"amanahchain/native/exchange"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32005
)

const maxRequestBytes = 1 << 20

const (
	maxTrackedClients = 1024
	clientIdleExpiry  = 10 * time.Minute
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

type handlerFunc func(*RPCRequest) (interface{}, *RPCError)

// Server exposes the ledger engines over JSON-RPC 2.0 plus the public audit
// read surface. Mutating calls are serialised behind a single mutex so the
// engines observe the strict total order the execution model requires.
type Server struct {
	donation    *donation.Engine
	exchange    *exchange.Engine
	certificate *certificate.Engine
	state       *state.Manager
	journal     *audit.Journal
	log         *slog.Logger

	txMu sync.Mutex

	limiterMu sync.Mutex
	limiters  map[string]*clientLimiter
	rateLimit rate.Limit
	rateBurst int

	methods map[string]handlerFunc
}

// NewServer wires the engines into an RPC dispatch table.
func NewServer(
	donationEngine *donation.Engine,
	exchangeEngine *exchange.Engine,
	certificateEngine *certificate.Engine,
	manager *state.Manager,
	journal *audit.Journal,
	logger *slog.Logger,
) *Server {
	s := &Server{
		donation:    donationEngine,
		exchange:    exchangeEngine,
		certificate: certificateEngine,
		state:       manager,
		journal:     journal,
		log:         logger,
		limiters:    make(map[string]*clientLimiter),
		rateLimit:   rate.Limit(50),
		rateBurst:   100,
	}
	s.methods = map[string]handlerFunc{
		"bank_balanceOf":        s.handleBankBalanceOf,
		"bank_tokenList":        s.handleBankTokenList,
		"donation_registerPool": s.handleDonationRegisterPool,
		"donation_retirePool":   s.handleDonationRetirePool,
		"donation_donate":       s.handleDonationDonate,
		"donation_poolBalance":  s.handleDonationPoolBalance,
		"donation_poolTotal":    s.handleDonationPoolTotal,
		"donation_getPool":      s.handleDonationGetPool,
		"donation_listPools":    s.handleDonationListPools,
		"donation_getRecord":    s.handleDonationGetRecord,
		"donation_withdraw":     s.handleDonationWithdraw,
		"exchange_placeOrder":   s.handleExchangePlaceOrder,
		"exchange_fillOrder":    s.handleExchangeFillOrder,
		"exchange_cancelOrder":  s.handleExchangeCancelOrder,
		"exchange_getOrder":     s.handleExchangeGetOrder,
		"exchange_listOrders":   s.handleExchangeListOrders,
		"cert_mint":             s.handleCertificateMint,
		"cert_redeem":           s.handleCertificateRedeem,
		"cert_transfer":         s.handleCertificateTransfer,
		"cert_get":              s.handleCertificateGet,
		"cert_listByOwner":      s.handleCertificateListByOwner,
		"audit_recent":          s.handleAuditRecent,
		"audit_allocationChart": s.handleAuditAllocation,
	}
	return s
}

// SetRateLimit overrides the per-client token bucket parameters.
func (s *Server) SetRateLimit(limit rate.Limit, burst int) {
	s.rateLimit = limit
	s.rateBurst = burst
}

// Router returns the HTTP handler serving /rpc, /healthz and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handleRPC)
	return r
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (s *Server) limiterFor(remote string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	now := time.Now()
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	client, ok := s.limiters[host]
	if !ok {
		if len(s.limiters) >= maxTrackedClients {
			s.evictClientsLocked(now)
		}
		client = &clientLimiter{limiter: rate.NewLimiter(s.rateLimit, s.rateBurst)}
		s.limiters[host] = client
	}
	client.lastSeen = now
	return client.limiter
}

// evictClientsLocked drops limiter entries idle longer than clientIdleExpiry,
// then falls back to removing the least recently seen clients until the map is
// back under maxTrackedClients. Callers must hold limiterMu.
func (s *Server) evictClientsLocked(now time.Time) {
	for host, client := range s.limiters {
		if now.Sub(client.lastSeen) > clientIdleExpiry {
			delete(s.limiters, host)
		}
	}
	for len(s.limiters) >= maxTrackedClients {
		oldestHost := ""
		var oldest time.Time
		for host, client := range s.limiters {
			if oldestHost == "" || client.lastSeen.Before(oldest) {
				oldestHost = host
				oldest = client.lastSeen
			}
		}
		delete(s.limiters, oldestHost)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.limiterFor(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, 0, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	result, rpcErr := handler(&req)
	if rpcErr != nil {
		if s.log != nil {
			s.log.Warn("rpc call failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		}
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id int, rpcErr *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "malformed params", Data: err.Error()}
	}
	return nil
}
