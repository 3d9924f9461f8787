// Package server is the thin request/response shell around the pipeline.
// Authentication, session identity, and UI rendering belong to the
// surrounding application; this layer only decodes requests, calls the
// pipeline, and encodes results.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
	"github.com/vlehtola/docmind/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Port string
}

type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
}

func New(config Config, p *pipeline.Pipeline) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	return &Server{config: config, pipeline: p}
}

type queryRequest struct {
	Question   string `json:"question"`
	MaxResults int    `json:"max_results"`
	Mode       string `json:"mode"`
}

type wsMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Mode    string      `json:"mode,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("listening on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

// ownerID reads the caller identity the outer application resolved. The
// pipeline trusts it; verifying it is the collaborator's job.
func ownerID(r *http.Request) string {
	if owner := r.Header.Get("X-Owner-ID"); owner != "" {
		return owner
	}
	return "demo"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
		return
	}

	receipt, err := s.pipeline.Ingest(r.Context(), ownerID(r), content, r.FormValue("type"), header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id":           receipt.DocumentID,
		"chunk_count":           receipt.ChunkCount,
		"analytic_signal_count": receipt.AnalyticSignalCount,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	result, err := s.pipeline.Answer(r.Context(), ownerID(r), req.Question, req.MaxResults, models.ParseMode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":     result.Answer,
		"confidence": result.Confidence,
		"sources":    sourcesPayload(result.Sources),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.ListDocuments(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		payload = append(payload, map[string]interface{}{
			"id":             doc.ID,
			"original_name":  doc.OriginalName,
			"declared_type":  doc.DeclaredType,
			"byte_size":      doc.ByteSize,
			"upload_time":    doc.UploadTime,
			"chunk_count":    doc.ChunkCount,
			"has_embeddings": doc.HasEmbeddings,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": payload})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.pipeline.DeleteDocument(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		writeError(w, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"deleted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	owner := ownerID(r)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message")
			continue
		}
		if msg.Type != "question" || msg.Content == "" {
			s.sendMessage(conn, "error", "expected a question message")
			continue
		}

		s.sendMessage(conn, "status", "searching your documents")
		result, err := s.pipeline.Answer(r.Context(), owner, msg.Content, 0, models.ParseMode(msg.Mode))
		if err != nil {
			s.sendMessage(conn, "error", err.Error())
			continue
		}

		payload := wsMessage{
			Type:    "answer",
			Content: result.Answer,
			Data: map[string]interface{}{
				"confidence": result.Confidence,
				"sources":    sourcesPayload(result.Sources),
			},
		}
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("error sending message: %v", err)
			break
		}
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(wsMessage{Type: msgType, Content: content}); err != nil {
		log.Printf("error sending message: %v", err)
	}
}

func sourcesPayload(sources []models.RetrievedEvidence) []map[string]interface{} {
	payload := make([]map[string]interface{}, 0, len(sources))
	for _, ev := range sources {
		preview := ev.Text
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		payload = append(payload, map[string]interface{}{
			"passage_id": ev.PassageID,
			"source":     ev.SourceName,
			"similarity": ev.Similarity,
			"preview":    preview,
		})
	}
	return payload
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, types.ErrEmptyDocument):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrNoDocumentsIndexed):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrEmbeddingUnavailable), errors.Is(err, types.ErrRetrievalUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Println("failed to encode response:", err)
	}
}
