package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Banking-Assistant/agent/metrics"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

// Config is loaded with the HTTP prefix.
type Config struct {
	Addr         string        `split_words:"true" default:":8000"`
	RateLimit    float64       `split_words:"true" default:"2"`
	RateBurst    int           `split_words:"true" default:"5"`
	ReadTimeout  time.Duration `split_words:"true" default:"15s"`
	WriteTimeout time.Duration `split_words:"true" default:"120s"`
	MaxBodyBytes int64         `split_words:"true" default:"1048576"`
}

// TurnHandler is the engine entry point.
type TurnHandler interface {
	HandleTurn(ctx context.Context, customerID, message string, key statex.Key) (string, error)
}

// Speech is optional; /stt and /tts answer 503 without it.
type Speech interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	SynthesizeBase64(ctx context.Context, text string) (string, error)
	MaxAudioBytes() int64
}

// IsClientError reports errors caused by the request rather than the server.
type IsClientError func(error) bool

type Server struct {
	turns       TurnHandler
	speech      Speech
	limiter     *customerLimiter
	cfg         Config
	clientError IsClientError
	mux         *http.ServeMux
}

type chatRequest struct {
	CustomerID string `json:"customer_id"`
	Message    string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type ttsRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(turns TurnHandler, speech Speech, cfg Config, clientError IsClientError) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if clientError == nil {
		clientError = func(error) bool { return false }
	}
	s := &Server{
		turns:       turns,
		speech:      speech,
		limiter:     newCustomerLimiter(cfg.RateLimit, cfg.RateBurst),
		cfg:         cfg,
		clientError: clientError,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /stt", s.handleSTT)
	s.mux.HandleFunc("POST /tts", s.handleTTS)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return instrument(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "customer_id and message are required")
		return
	}
	if !s.limiter.Allow(req.CustomerID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	reply, err := s.turns.HandleTurn(r.Context(), req.CustomerID, req.Message, statex.CustomerKey(req.CustomerID))
	if err != nil {
		if s.clientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("customer_id", req.CustomerID).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.speech.MaxAudioBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	text, err := s.speech.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("transcription failed")
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}
	var req ttsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := s.speech.SynthesizeBase64(r.Context(), req.Text)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("speech synthesis failed")
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio_base64": audio})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

var knownRoutes = map[string]bool{
	"/chat":    true,
	"/stt":     true,
	"/tts":     true,
	"/metrics": true,
	"/healthz": true,
}

// routeLabel keeps the path label bounded.
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status))
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}
