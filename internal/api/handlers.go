package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roastedledger/utxo-indexer/internal/ledger"
)

type errorBody struct {
	Error     string `json:"error"`
	Expected  string `json:"expected,omitempty"`
	Received  string `json:"received,omitempty"`
	HashInput string `json:"hashInput,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeChainError maps a ChainError to its HTTP status and body. Every
// rejection except StoreError is a client error (400); StoreError is a
// server-side failure (500).
func writeChainError(w http.ResponseWriter, cerr *ledger.ChainError) {
	status := http.StatusBadRequest
	if cerr.Kind == ledger.KindStoreError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{
		Error:     cerr.Error(),
		Expected:  cerr.Expected,
		Received:  cerr.Received,
		HashInput: cerr.HashInput,
	})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"welcome": "in blockchain"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"currentHeight": s.engine.Height(),
	})
}

func (s *Server) handleSubmitBlock(w http.ResponseWriter, r *http.Request) {
	var block ledger.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	height, cerr := s.engine.SubmitBlock(&block)
	if cerr != nil {
		writeChainError(w, cerr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Block accepted",
		"height": height,
	})
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, count, currentHeight := s.engine.ListBlocks()
	writeJSON(w, http.StatusOK, map[string]any{
		"blocks":        blocks,
		"count":         count,
		"currentHeight": currentHeight,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	balance := s.engine.Balance(address)
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"balance": balance,
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("height")
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeChainError(w, ledger.NewInvalidHeightParam(strconv.Quote(raw)))
		return
	}

	if cerr := s.engine.Rollback(target); cerr != nil {
		writeChainError(w, cerr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Rollback successful",
		"height": target,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if cerr := s.engine.Reset(); cerr != nil {
		writeChainError(w, cerr)
		return
	}

	blocksCount, utxosCount, balancesCount := s.engine.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "Reset successful",
		"currentHeight": s.engine.Height(),
		"blocksCount":   blocksCount,
		"utxosCount":    utxosCount,
		"balancesCount": balancesCount,
	})
}
