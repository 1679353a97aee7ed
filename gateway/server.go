package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablemint/crypto"
	"stablemint/native/collateral"
)

// Server exposes the engine's read-only query surface over HTTP. All routes
// are side-effect free; mutations only happen through the engine API.
type Server struct {
	engine *collateral.Engine
	log    *slog.Logger
}

func NewServer(engine *collateral.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, log: log}
}

// Router builds the chi route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/v1/assets", s.handleListAssets)
	r.Get("/v1/assets/{symbol}/value", s.handleAssetValue)
	r.Get("/v1/accounts/{address}/health", s.handleAccountHealth)
	r.Get("/v1/accounts/{address}/collateral-value", s.handleAccountValue)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAssets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assets": s.engine.Assets()})
}

func (s *Server) handleAssetValue(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	raw := r.URL.Query().Get("amount")
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative integer")
		return
	}
	value, err := s.engine.ValueInUSD(symbol, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":    symbol,
		"amount":   amount.String(),
		"usdValue": value.String(),
	})
}

func (s *Server) handleAccountHealth(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.decodeAddress(w, r)
	if !ok {
		return
	}
	ratio, err := s.engine.HealthFactor(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	response := map[string]any{
		"account":      addr.String(),
		"healthFactor": ratio.String(),
		"unbounded":    collateral.Unbounded(ratio),
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAccountValue(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.decodeAddress(w, r)
	if !ok {
		return
	}
	value, err := s.engine.AccountCollateralValue(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":  addr.String(),
		"usdValue": value.String(),
	})
}

func (s *Server) decodeAddress(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collateral.ErrAssetNotAllowed):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, collateral.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, collateral.ErrOracleUnavailable),
		errors.Is(err, collateral.ErrStalePrice),
		errors.Is(err, collateral.ErrInvalidPrice):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
