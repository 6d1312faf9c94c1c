package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

const (
	DefaultChunkSize = 1 << 20
	requestTimeout   = 5 * time.Minute
)

// Adapter uploads videos through the YouTube Data API v3 resumable protocol.
// The OAuth access token is obtained elsewhere.
type Adapter struct {
	token     string
	baseURL   string
	chunkSize int64
	client    *http.Client
	backoff   Backoff
	logger    *slog.Logger
}

func New(accessToken, baseURL string, chunkSize int64, logger *slog.Logger) *Adapter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		token:     accessToken,
		baseURL:   normalizeBaseURL(baseURL),
		chunkSize: chunkSize,
		client: &http.Client{
			Timeout: requestTimeout,
			// 308 is "resume incomplete", never a redirect to follow.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		backoff: DefaultBackoff(),
		logger:  logger,
	}
}

// Upload transfers the file in chunks and returns the new video id.
// Transient failures are retried with backoff; after a retry the committed
// offset is re-read from the session before continuing.
func (a *Adapter) Upload(ctx context.Context, req types.UploadRequest) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrUploadFatal, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrUploadFatal, err)
	}
	total := st.Size()
	if total == 0 {
		return "", fmt.Errorf("%w: %s is empty", types.ErrUploadFatal, req.FilePath)
	}

	retries := 0
	var session string
	for session == "" {
		session, err = a.startSession(ctx, req, total)
		if err != nil {
			if err := a.backoff.next(ctx, &retries, err); err != nil {
				return "", err
			}
			a.logger.Warn("retrying upload session start", "retry", retries, "error", err)
		}
	}
	a.logger.Info("upload session started", "path", req.FilePath, "bytes", total)

	var offset int64
	resync := false
	for {
		var (
			id   string
			next int64
		)
		if resync {
			id, next, err = a.queryStatus(ctx, session, total)
		} else {
			id, next, err = a.putChunk(ctx, session, f, offset, total)
		}
		if err != nil {
			if err := a.backoff.next(ctx, &retries, err); err != nil {
				return "", err
			}
			a.logger.Warn("retrying upload", "retry", retries, "offset", offset, "error", err)
			resync = true
			continue
		}
		resync = false
		if id != "" {
			a.logger.Info("upload complete", "video_id", id, "retries", retries)
			return id, nil
		}
		offset = next
		a.logger.Debug("upload chunk committed", "offset", offset, "total", total)
	}
}

type videoResource struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

func (a *Adapter) startSession(ctx context.Context, req types.UploadRequest, total int64) (string, error) {
	var body videoResource
	body.Snippet.Title = req.Title
	body.Snippet.Description = req.Description
	body.Snippet.Tags = req.Tags
	if body.Snippet.Tags == nil {
		body.Snippet.Tags = []string{}
	}
	body.Status.PrivacyStatus = string(req.Privacy)
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal video resource: %w", err)
	}

	url := a.baseURL + "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Authorization", "Bearer "+a.token)
	hreq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	hreq.Header.Set("X-Upload-Content-Length", strconv.FormatInt(total, 10))
	hreq.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := a.client.Do(hreq)
	if err != nil {
		return "", &types.UploadError{Op: "start", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", a.statusError("start", resp)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", &types.UploadError{Op: "start", StatusCode: resp.StatusCode, Body: "missing session location"}
	}
	u, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return "", &types.UploadError{Op: "start", StatusCode: resp.StatusCode, Body: "invalid session location"}
	}
	return u.String(), nil
}

func (a *Adapter) putChunk(ctx context.Context, session string, f *os.File, offset, total int64) (string, int64, error) {
	n := min(a.chunkSize, total-offset)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPut, session, io.NewSectionReader(f, offset, n))
	if err != nil {
		return "", 0, err
	}
	hreq.ContentLength = n
	hreq.Header.Set("Authorization", "Bearer "+a.token)
	hreq.Header.Set("Content-Type", "video/*")
	hreq.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+n-1, total))
	return a.send(hreq, "chunk")
}

func (a *Adapter) queryStatus(ctx context.Context, session string, total int64) (string, int64, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPut, session, http.NoBody)
	if err != nil {
		return "", 0, err
	}
	hreq.Header.Set("Authorization", "Bearer "+a.token)
	hreq.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	return a.send(hreq, "status")
}

// send performs a session request. It returns the video id when the upload
// is finished, otherwise the next byte offset to send.
func (a *Adapter) send(hreq *http.Request, op string) (string, int64, error) {
	resp, err := a.client.Do(hreq)
	if err != nil {
		return "", 0, &types.UploadError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", 0, &types.UploadError{Op: op, StatusCode: resp.StatusCode, Body: "decode response: " + err.Error()}
		}
		if out.ID == "" {
			return "", 0, &types.UploadError{Op: op, StatusCode: resp.StatusCode, Body: "response has no video id"}
		}
		return out.ID, 0, nil
	case resp.StatusCode == http.StatusPermanentRedirect:
		next, _ := parseRange(resp.Header.Get("Range"))
		return "", next, nil
	default:
		return "", 0, a.statusError(op, resp)
	}
}

func (a *Adapter) statusError(op string, resp *http.Response) error {
	rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &types.UploadError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       truncate(redactSecrets(strings.TrimSpace(string(rb)), a.token), 400),
	}
}

// parseRange reads "bytes=0-N" and returns N+1. A missing header means no
// bytes have been committed.
func parseRange(h string) (int64, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, false
	}
	_, span, ok := strings.Cut(h, "=")
	if !ok {
		return 0, false
	}
	_, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n + 1, true
}

// WatchURL is the public short link for an uploaded video.
func WatchURL(videoID string) string {
	return "https://youtu.be/" + videoID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	tokenFieldRE  = regexp.MustCompile(`(?i)(access[_-]?token\s*[:=]\s*)([^\n\r,;&]+)`)
)

func redactSecrets(s, token string) string {
	if s == "" {
		return s
	}
	out := s
	if token != "" {
		out = strings.ReplaceAll(out, token, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = tokenFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
