package kiosk

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trashure/kiosk/internal/receipt"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// handleStartSession starts a new scan session
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	status, err := s.service.StartSession(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, ErrSessionActive) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("Error starting session", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, status)
}

// handleSessionStatus returns a snapshot of the active session
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status()
	if err != nil {
		corsError(w, "No active session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleManualScan performs a manual single-shot scan
func (s *Server) handleManualScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ForceConfirm()
	if err != nil {
		corsError(w, "No active session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTouch records UI activity against the idle supervisor
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Touch(); err != nil {
		corsError(w, "No active session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFinishSession finalizes the active session and returns the signed
// receipt
func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Finish(r.Context(), ReasonFinished)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			corsError(w, "No active session", http.StatusNotFound)
			return
		}
		slog.Error("Error finishing session", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListReceipts returns all archived receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if receipts == nil {
		receipts = []*receipt.SignedReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single archived receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	nonce := r.PathValue("nonce")
	if nonce == "" {
		corsError(w, "Receipt nonce required", http.StatusBadRequest)
		return
	}
	sr, err := s.service.GetReceipt(nonce)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// handleGetReceiptQR returns the rendered QR image for an archived receipt
func (s *Server) handleGetReceiptQR(w http.ResponseWriter, r *http.Request) {
	nonce := r.PathValue("nonce")
	if nonce == "" {
		corsError(w, "Receipt nonce required", http.StatusBadRequest)
		return
	}
	data, err := s.service.GetReceiptImage(nonce)
	if err != nil {
		corsError(w, "Receipt image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// handleVerifyReceipt checks a posted signed receipt against the kiosk's
// signing secret
func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var sr receipt.SignedReceipt
	if err := json.NewDecoder(r.Body).Decode(&sr); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": s.service.VerifyReceipt(sr)})
}
