package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/maverikod/vvz-rpc-clients/internal/jsonrpc"
	"github.com/maverikod/vvz-rpc-clients/internal/storage"
)

// Handler dispatches JSON-RPC requests on POST /cmd and exposes plain
// HTTP health probes.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/cmd", h.handleRPC)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/live", h.handleLiveness)
	mux.HandleFunc("/ready", h.handleReadiness)
	return mux
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, 0, jsonrpc.CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != jsonrpc.Version || req.Method == "" {
		h.writeError(w, req.ID, jsonrpc.CodeInvalidRequest, "invalid request envelope")
		return
	}

	params, err := json.Marshal(req.Params)
	if err != nil {
		h.writeError(w, req.ID, jsonrpc.CodeInvalidRequest, "invalid params")
		return
	}

	result, err := h.dispatch(r, req.Method, params)
	if err != nil {
		code, message := errorCode(err)
		h.service.collector.IncrementError(req.Method, errorType(code))
		h.logger.Debug("RPC call failed",
			zap.String("method", req.Method),
			zap.Int("code", code),
			zap.Error(err))
		h.writeError(w, req.ID, code, message)
		return
	}

	h.service.collector.IncrementRequest(req.Method, "success")
	h.writeResult(w, req.ID, result)
}

func (h *Handler) dispatch(r *http.Request, method string, rawParams []byte) (any, error) {
	ctx := r.Context()

	switch method {
	case "health":
		return h.service.Health(ctx)
	case "help":
		var params helpParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed help params")
		}
		return h.service.Help(ctx, params)
	case "config":
		var params configOpParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed config params")
		}
		return h.service.Config(ctx, params, bearerToken(r))
	case "create_record":
		var params createParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed create params")
		}
		return h.service.CreateRecord(ctx, params)
	case "create_text_record":
		var params createParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed create params")
		}
		return h.service.CreateTextRecord(ctx, params)
	case "search_records":
		var params searchParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed search params")
		}
		return h.service.SearchRecords(ctx, params)
	case "search_text_records":
		var params searchParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed search params")
		}
		return h.service.SearchTextRecords(ctx, params)
	case "filter_records":
		var params filterParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed filter params")
		}
		return h.service.FilterRecords(ctx, params)
	case "get_metadata":
		var params recordIDParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed params")
		}
		return h.service.GetMetadata(ctx, params)
	case "get_text":
		var params recordIDParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed params")
		}
		return h.service.GetText(ctx, params)
	case "delete_records":
		var params deleteParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed delete params")
		}
		return h.service.DeleteRecords(ctx, params)
	case "find_chunks_by_source_id":
		var params findChunksParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, invalidParams("malformed params")
		}
		return h.service.FindChunksBySourceID(ctx, params)
	default:
		return nil, &serviceError{Code: jsonrpc.CodeMethodNotFound, Message: "unknown method: " + method}
	}
}

func errorCode(err error) (int, string) {
	var svcErr *serviceError
	if errors.As(err, &svcErr) {
		return svcErr.Code, svcErr.Message
	}
	if errors.Is(err, storage.ErrRecordNotFound) {
		return jsonrpc.CodeNotFound, err.Error()
	}
	return jsonrpc.CodeInternalError, err.Error()
}

func errorType(code int) string {
	switch code {
	case jsonrpc.CodeInvalidParams:
		return "validation"
	case jsonrpc.CodeNotFound:
		return "not_found"
	case jsonrpc.CodeNotAuthenticated:
		return "auth"
	case jsonrpc.CodeMethodNotFound:
		return "unknown_method"
	default:
		return "internal"
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

func (h *Handler) writeResult(w http.ResponseWriter, id int64, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		h.writeError(w, id, jsonrpc.CodeInternalError, "marshal result failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Result:  raw,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id int64, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Error:   &jsonrpc.ErrorObject{Code: code, Message: message},
	}); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
