package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/internal/types"
	"github.com/jteo/copra/pkg/assistant"
	"github.com/jteo/copra/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// ExcerptResult carries an uploaded-document excerpt with the citation
// metadata clients need to display it.
type ExcerptResult struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Distance float64 `json:"distance"`
}

// AskResult is the JSON body returned by the /ask endpoint.
type AskResult struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	Excerpts  []ExcerptResult `json:"excerpts,omitempty"`
}

// Server exposes the assistant over HTTP and WebSocket. Every client is
// bound to a session holding its ephemeral uploaded-document index;
// sessions are minted on first contact and dropped on /session/clear or
// shutdown.
type Server struct {
	assistant       *assistant.Assistant
	sessionEmbedder types.Embedder

	mu       sync.Mutex
	sessions map[string]*session.Session
}

func New(asst *assistant.Assistant, sessionEmbedder types.Embedder) *Server {
	return &Server{
		assistant:       asst,
		sessionEmbedder: sessionEmbedder,
		sessions:        make(map[string]*session.Session),
	}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/session/clear", s.handleClear)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Close clears every live session's ephemeral index.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.Clear()
		delete(s.sessions, id)
	}
}

// getSession returns the session for id, minting one when id is empty or
// unknown. The (possibly new) id is returned alongside.
func (s *Server) getSession(id string) (string, *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return id, sess
		}
	}
	id = uuid.NewString()
	sess := session.New(s.sessionEmbedder)
	s.sessions[id] = sess
	return id, sess
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 32 MB in-memory limit for multipart uploads.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid multipart form: %v", err), http.StatusBadRequest)
		return
	}

	req := assistant.AskRequest{
		Question:           r.FormValue("question"),
		UseUploadedContext: r.FormValue("use_uploaded_context") == "true",
		Strict:             r.FormValue("strict") != "false",
	}
	if v := r.FormValue("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "top_k must be an integer", http.StatusBadRequest)
			return
		}
		req.TopK = topK
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			f, err := header.Open()
			if err != nil {
				http.Error(w, fmt.Sprintf("reading upload %s: %v", header.Filename, err), http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				http.Error(w, fmt.Sprintf("reading upload %s: %v", header.Filename, err), http.StatusBadRequest)
				return
			}
			req.Files = append(req.Files, models.UploadedFile{Name: header.Filename, Data: data})
		}
	}

	sessionID, sess := s.getSession(r.Header.Get("X-Session-ID"))

	resp, err := s.assistant.Answer(r.Context(), sess, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := AskResult{SessionID: sessionID, Answer: resp.Answer}
	for _, e := range resp.Excerpts {
		page, _ := e.Metadata["page"].(int)
		source, _ := e.Metadata["source"].(string)
		result.Excerpts = append(result.Excerpts, ExcerptResult{
			Text:     e.Text,
			Source:   source,
			Page:     page,
			Distance: e.Distance,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleClear drops the caller's session and its ephemeral index.
// Clearing an unknown or already-cleared session succeeds; the operation
// is idempotent.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.Header.Get("X-Session-ID")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Clear()
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

// handleMessage answers a WebSocket chat turn from the persistent
// corpus. Uploaded-document sessions go through /ask; the socket surface
// is query-only.
func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	if msg.Type != "query" {
		s.sendMessage(conn, "error", fmt.Sprintf("unknown message type %q", msg.Type))
		return
	}

	answer, err := s.assistant.Ask(ctx, msg.Content)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
		return
	}
	s.sendMessage(conn, "response", answer)
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
