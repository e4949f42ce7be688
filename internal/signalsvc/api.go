package signalsvc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"trend-signals/internal/model"
)

// routes mounts the query endpoints on mux.
func (svc *Service) routes(mux *http.ServeMux) {
	mux.HandleFunc("/analysis", svc.handleAnalysis)
	mux.HandleFunc("/indicator", svc.handleIndicator)
	mux.HandleFunc("/scan", svc.handleScan)
	mux.HandleFunc("/history", svc.handleHistory)
}

// handleAnalysis serves GET /analysis?symbol=X, or every current record
// when symbol is omitted.
func (svc *Service) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		syms := svc.engine.Symbols()
		out := make([]model.TrendAnalysis, 0, len(syms))
		for _, s := range syms {
			if rec, ok := svc.engine.GetTrendAnalysis(s); ok {
				out = append(out, rec)
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	rec, ok := svc.engine.GetTrendAnalysis(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no analysis for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleIndicator serves GET /indicator?symbol=X&period=P.
func (svc *Service) handleIndicator(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	period, err := strconv.Atoi(q.Get("period"))
	if symbol == "" || err != nil || period <= 0 {
		writeError(w, http.StatusBadRequest, "symbol and a positive period are required")
		return
	}
	res, ok := svc.engine.GetLatestIndicator(symbol, period)
	if !ok {
		writeError(w, http.StatusNotFound, "indicator not ready")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleScan serves GET /scan?symbols=A,B. Without symbols the configured
// universe is scanned.
func (svc *Service) handleScan(w http.ResponseWriter, r *http.Request) {
	instruments := svc.instruments()
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		instruments = instruments[:0:0]
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				instruments = append(instruments, model.Instrument{Symbol: s, DisplayName: s})
			}
		}
	}
	writeJSON(w, http.StatusOK, svc.engine.ScanMarket(instruments))
}

// handleHistory serves GET /history?symbol=X&limit=N from the archive.
func (svc *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	if svc.analysis == nil {
		writeError(w, http.StatusServiceUnavailable, "archive disabled")
		return
	}
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := svc.analysis.ReadAnalysis(symbol, limit)
	if err != nil {
		svc.log.Error("history query failed", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
