package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/yoockh/voiceinterview/internal/storage"
	"github.com/yoockh/voiceinterview/internal/utils"
)

const maxRecordingBytes = 100 << 20

// RecordingService copies call recordings from the voice platform into our
// own bucket before the platform's links expire.
type RecordingService interface {
	Archive(ctx context.Context, callID, recordingURL string) (storedPath string, err error)
}

type recordingService struct {
	uploader storage.Uploader
	client   *http.Client
	maxBytes int64
}

func NewRecordingService(uploader storage.Uploader, client *http.Client) RecordingService {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &recordingService{uploader: uploader, client: client, maxBytes: maxRecordingBytes}
}

func (s *recordingService) Archive(ctx context.Context, callID, recordingURL string) (string, error) {
	const op = "RecordingService.Archive"

	if callID == "" || recordingURL == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "call_id and recording url are required", nil)
	}
	u, err := url.Parse(recordingURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", utils.E(utils.CodeInvalidArgument, op, "recording url must be http(s)", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "bad recording url", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to fetch recording", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", utils.E(utils.CodeUpstream, op, fmt.Sprintf("recording fetch returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to read recording", err)
	}
	if len(body) == 0 {
		return "", utils.E(utils.CodeUpstream, op, "empty recording", nil)
	}
	if int64(len(body)) > s.maxBytes {
		return "", utils.E(utils.CodeInvalidArgument, op, "recording too large", nil)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		ext = ".wav"
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	object := "recordings/" + strings.ReplaceAll(callID, "/", "_") + ext
	stored, err := s.uploader.Upload(ctx, object, contentType, bytes.NewReader(body))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to upload recording", err)
	}
	return stored, nil
}
