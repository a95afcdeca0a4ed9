package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/lumenvoice/voxloop/pkg/errorsx"
)

// HTTPConfig configures the multipart transport.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPDispatcher posts the utterance as a multipart form: file field
// "audio" with the WAV bytes, form field "voice_id" with the voice
// identifier. The response is a JSON object carrying the transcription,
// the response text, and base64-encoded response audio.
type HTTPDispatcher struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) (*HTTPDispatcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing backend url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (d *HTTPDispatcher) Name() string { return "http" }

type wireResult struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Transcription string `json:"user_transcription"`
	ResponseText  string `json:"assistant_response_text"`
	ResponseAudio string `json:"assistant_response_audio"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audio"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if err := writer.WriteField("voice_id", req.VoiceID); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if err := writer.Close(); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, body)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	slog.Debug("dispatching utterance",
		slog.String("url", d.cfg.URL),
		slog.String("voice_id", req.VoiceID),
		slog.Int("wav_bytes", len(req.Audio)))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}

	// Error statuses still carry a JSON body with a message; parse
	// before rejecting on the code alone.
	result, parseErr := parseWire(raw)
	if parseErr != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, errorsx.Wrap(
				fmt.Errorf("backend returned %s", resp.Status), errorsx.ReasonDispatchStatus)
		}
		return Result{}, parseErr
	}
	return result, nil
}

func parseWire(raw []byte) (Result, error) {
	var wire wireResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchMalformed)
	}

	result := Result{
		Message:       wire.Message,
		Transcription: wire.Transcription,
		ResponseText:  wire.ResponseText,
	}
	switch Status(wire.Status) {
	case StatusSuccess, StatusExit, StatusError:
		result.Status = Status(wire.Status)
	default:
		return Result{}, errorsx.Wrap(
			fmt.Errorf("unknown status %q", wire.Status), errorsx.ReasonDispatchMalformed)
	}

	if wire.ResponseAudio != "" {
		audio, err := base64.StdEncoding.DecodeString(wire.ResponseAudio)
		if err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchMalformed)
		}
		result.ResponseAudio = audio
	}
	return result, nil
}
