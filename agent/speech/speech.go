package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"

	openrouterx "github.com/tanpawarit/Chative-Banking-Assistant/pkg/openrouter"
)

var (
	ErrDisabled   = errors.New("speech service is not configured")
	ErrEmptyInput = errors.New("speech input is empty")
)

// Config is loaded with the SPEECH prefix.
type Config struct {
	BaseURL            string        `split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	TranscriptionModel string        `split_words:"true" default:"whisper-1"`
	SpeechModel        string        `split_words:"true" default:"gpt-4o-mini-tts"`
	Voice              string        `split_words:"true" default:"nova"`
	Language           string        `split_words:"true" default:"tr"`
	Timeout            time.Duration `split_words:"true" default:"60s"`
	MaxAudioBytes      int64         `split_words:"true" default:"26214400"`
}

// Service transcribes customer audio and voices assistant replies.
type Service struct {
	client *openai.Client
	cfg    Config
}

func New(cfg Config) (*Service, error) {
	client := openrouterx.NewClient(openrouterx.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if client == nil {
		return nil, ErrDisabled
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 25 << 20
	}
	return &Service{client: client, cfg: cfg}, nil
}

func (s *Service) MaxAudioBytes() int64 {
	return s.cfg.MaxAudioBytes
}

// Transcribe converts an uploaded audio file to text.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if audio == nil {
		return "", ErrEmptyInput
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(audio, filename, "application/octet-stream"),
		Model:          openai.AudioModel(s.cfg.TranscriptionModel),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize returns MP3 audio for text.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.cfg.SpeechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(s.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return audio, nil
}

func (s *Service) SynthesizeBase64(ctx context.Context, text string) (string, error) {
	audio, err := s.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}
