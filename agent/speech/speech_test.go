package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "tr" {
			http.Error(w, "unexpected form", http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		if b, _ := io.ReadAll(f); string(b) != "fake-audio" {
			http.Error(w, "unexpected file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " bakiyemi göster "})
	})
	mux.HandleFunc("/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["voice"] != "nova" || body["input"] == "" {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, baseURL string) *Service {
	t.Helper()
	svc, err := New(Config{
		BaseURL:            baseURL,
		APIKey:             "test-key",
		TranscriptionModel: "whisper-1",
		SpeechModel:        "gpt-4o-mini-tts",
		Voice:              "nova",
		Language:           "tr",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeOpenAI(t).URL)
	text, err := svc.Transcribe(context.Background(), bytes.NewReader([]byte("fake-audio")), "voice.webm")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "bakiyemi göster" {
		t.Fatalf("Transcribe() = %q", text)
	}
}

func TestSynthesizeBase64(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeOpenAI(t).URL)
	encoded, err := svc.SynthesizeBase64(context.Background(), "Ahmet Bey, bakiyeniz 100 TL.")
	if err != nil {
		t.Fatalf("SynthesizeBase64() error = %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || string(raw) != "ID3-fake-mp3" {
		t.Fatalf("unexpected audio %q (%v)", raw, err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "http://127.0.0.1:1")
	if _, err := svc.Synthesize(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
