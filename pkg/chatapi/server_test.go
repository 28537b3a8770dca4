package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

var errBadInput = errors.New("bad input")

type fakeTurns struct {
	mu    sync.Mutex
	calls []string
	keys  []statex.Key
	reply string
	err   error
}

func (f *fakeTurns) HandleTurn(_ context.Context, customerID, message string, key statex.Key) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, customerID+":"+message)
	f.keys = append(f.keys, key)
	return f.reply, f.err
}

type fakeSpeech struct {
	gotAudio string
	gotName  string
	gotText  string
	err      error
}

func (f *fakeSpeech) Transcribe(_ context.Context, audio io.Reader, filename string) (string, error) {
	raw, _ := io.ReadAll(audio)
	f.gotAudio = string(raw)
	f.gotName = filename
	return "bakiyem ne kadar", f.err
}

func (f *fakeSpeech) SynthesizeBase64(_ context.Context, text string) (string, error) {
	f.gotText = text
	return "QVVESU8=", f.err
}

func (f *fakeSpeech) MaxAudioBytes() int64 { return 1 << 20 }

func isBadInput(err error) bool { return errors.Is(err, errBadInput) }

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestChatReturnsReply(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{reply: "Ahmet Bey, bakiyeniz 12.500 TL."}
	srv := New(turns, nil, Config{}, isBadInput)

	rec := postJSON(t, srv.Handler(), "/chat", map[string]string{"customer_id": " CUST0001 ", "message": "bakiyem?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["response"]; got != turns.reply {
		t.Fatalf("response = %q", got)
	}
	if len(turns.calls) != 1 || turns.calls[0] != "CUST0001:bakiyem?" {
		t.Fatalf("calls = %v", turns.calls)
	}
	if turns.keys[0] != statex.CustomerKey("CUST0001") {
		t.Fatalf("key = %v", turns.keys[0])
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{reply: "ok"}
	h := New(turns, nil, Config{}, isBadInput).Handler()

	for _, body := range []string{`{`, `{"customer_id":"CUST0001"}`, `{"message":"merhaba"}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
	if len(turns.calls) != 0 {
		t.Fatalf("engine called for invalid requests: %v", turns.calls)
	}
}

func TestChatMapsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "client error", err: errBadInput, want: http.StatusBadRequest},
		{name: "store failure", err: errors.New("redis down"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := New(&fakeTurns{err: tt.err}, nil, Config{}, isBadInput)
			rec := postJSON(t, srv.Handler(), "/chat", map[string]string{"customer_id": "CUST0001", "message": "x"})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if strings.Contains(rec.Body.String(), "redis") {
				t.Fatalf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestChatRateLimitsPerCustomer(t *testing.T) {
	t.Parallel()

	srv := New(&fakeTurns{reply: "ok"}, nil, Config{RateLimit: 0.001, RateBurst: 1}, nil)
	h := srv.Handler()

	first := postJSON(t, h, "/chat", map[string]string{"customer_id": "CUST0001", "message": "a"})
	second := postJSON(t, h, "/chat", map[string]string{"customer_id": "CUST0001", "message": "b"})
	other := postJSON(t, h, "/chat", map[string]string{"customer_id": "CUST0002", "message": "c"})

	if first.Code != http.StatusOK || other.Code != http.StatusOK {
		t.Fatalf("first=%d other=%d", first.Code, other.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", second.Code)
	}
}

func TestSpeechRoutesUnavailableWithoutBackend(t *testing.T) {
	t.Parallel()

	h := New(&fakeTurns{}, nil, Config{}, nil).Handler()
	for _, path := range []string{"/stt", "/tts"} {
		rec := postJSON(t, h, path, map[string]string{"text": "merhaba"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestSTTTranscribesUpload(t *testing.T) {
	t.Parallel()

	sp := &fakeSpeech{}
	h := New(&fakeTurns{}, sp, Config{}, nil).Handler()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "voice.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("audio-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/stt", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["text"]; got != "bakiyem ne kadar" {
		t.Fatalf("text = %q", got)
	}
	if sp.gotAudio != "audio-bytes" || sp.gotName != "voice.webm" {
		t.Fatalf("audio = %q name = %q", sp.gotAudio, sp.gotName)
	}
}

func TestSTTRequiresFile(t *testing.T) {
	t.Parallel()

	h := New(&fakeTurns{}, &fakeSpeech{}, Config{}, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stt", strings.NewReader("nope")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTTSReturnsBase64Audio(t *testing.T) {
	t.Parallel()

	sp := &fakeSpeech{}
	h := New(&fakeTurns{}, sp, Config{}, nil).Handler()

	rec := postJSON(t, h, "/tts", map[string]string{"text": "Hoş geldiniz"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["audio_base64"]; got != "QVVESU8=" {
		t.Fatalf("audio_base64 = %q", got)
	}
	if sp.gotText != "Hoş geldiniz" {
		t.Fatalf("text = %q", sp.gotText)
	}

	if rec := postJSON(t, h, "/tts", map[string]string{"text": "  "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank text status = %d", rec.Code)
	}
}

func TestTTSBackendFailure(t *testing.T) {
	t.Parallel()

	h := New(&fakeTurns{}, &fakeSpeech{err: errors.New("upstream")}, Config{}, nil).Handler()
	if rec := postJSON(t, h, "/tts", map[string]string{"text": "x"}); rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthzAndUnknownRoute(t *testing.T) {
	t.Parallel()

	h := New(&fakeTurns{}, nil, Config{}, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /chat = %d", rec.Code)
	}
	if routeLabel("/random/path") != "other" {
		t.Fatal("unknown path not collapsed")
	}
}
