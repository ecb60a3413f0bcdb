package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/fallback"
	"github.com/ziadkadry99/cverag/internal/llm"
	"github.com/ziadkadry99/cverag/internal/rag"
	"github.com/ziadkadry99/cverag/internal/upload"
)

// ragConfigResponse lists the menus offered to clients.
type ragConfigResponse struct {
	Models   []string `json:"models"`
	RAGTypes []string `json:"ragTypes"`
}

func (s *Server) handleRAGConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ragConfigResponse{
		Models:   s.service.Models(),
		RAGTypes: s.service.RAGTypes(),
	})
}

// ragTypes accepts either a JSON array or a single string.
type ragTypes []string

func (t *ragTypes) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = ragTypes{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("ragTypes must be a string or an array of strings")
	}
	*t = many
	return nil
}

// promptPayload is the JSON request body. Settings may sit at the top level
// or inside ragConfig; top-level values win.
type promptPayload struct {
	Prompt    string   `json:"prompt"`
	Model     string   `json:"model"`
	RAGTypes  ragTypes `json:"ragTypes"`
	Chunks    int      `json:"chunks"`
	Context   string   `json:"context"`
	RAGConfig *struct {
		Model    string   `json:"model"`
		RAGTypes ragTypes `json:"ragTypes"`
		Chunks   int      `json:"chunks"`
	} `json:"ragConfig"`
}

func (p promptPayload) request() rag.Request {
	req := rag.Request{
		Prompt:   p.Prompt,
		Model:    p.Model,
		RAGTypes: p.RAGTypes,
		Chunks:   p.Chunks,
		Context:  p.Context,
	}
	if c := p.RAGConfig; c != nil {
		if req.Model == "" {
			req.Model = c.Model
		}
		if len(req.RAGTypes) == 0 {
			req.RAGTypes = c.RAGTypes
		}
		if req.Chunks == 0 {
			req.Chunks = c.Chunks
		}
	}
	return req
}

var (
	errMissingBody = errors.New("request body missing")
	errBadRequest  = errors.New("bad request")
)

// decodePrompt reads either a multipart form with a "json" field and an
// optional "file", or a plain JSON body.
func (s *Server) decodePrompt(w http.ResponseWriter, r *http.Request) (rag.Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var p promptPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return rag.Request{}, errMissingBody
			}
			return rag.Request{}, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
		}
		return p.request(), nil
	}

	if s.cfg.MaxUploadBytes > 0 {
		// Leave room for the form fields around the file.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return rag.Request{}, fmt.Errorf("%w: limit is %d bytes", upload.ErrTooLarge, s.cfg.MaxUploadBytes)
		}
		return rag.Request{}, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}

	raw := r.FormValue("json")
	if raw == "" {
		return rag.Request{}, errMissingBody
	}
	var p promptPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return rag.Request{}, fmt.Errorf("%w: invalid json field: %v", errBadRequest, err)
	}
	req := p.request()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return rag.Request{}, fmt.Errorf("%w: reading file: %v", errBadRequest, err)
	}
	defer file.Close()

	text, err := upload.Read(header.Filename, file, s.cfg.MaxUploadBytes)
	if err != nil {
		return rag.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	req.Context = strings.TrimSpace(strings.Join([]string{req.Context, text}, "\n"))
	return req, nil
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodePrompt(w, r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	res, err := s.service.Prompt(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps service and decoding errors to HTTP status codes.
func statusFor(err error) int {
	var stage *fallback.StageError
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMissingBody),
		errors.Is(err, rag.ErrEmptyPrompt),
		errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrPipelineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, cve.ErrCorruptRecord):
		return http.StatusInternalServerError
	case errors.As(err, &stage), errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
