package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
)

const fetchChunkSize = 32 * 1024

// HTTPContentSource implements domain.ContentSource over plain HTTP streaming
type HTTPContentSource struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	stallTimeout time.Duration
	logger       *zap.Logger
}

// NewHTTPContentSource creates a content source for the given API base URL
func NewHTTPContentSource(config *domain.SourceConfig, stallTimeout time.Duration, logger *zap.Logger) *HTTPContentSource {
	return &HTTPContentSource{
		// No overall timeout: large episode files take arbitrarily long.
		// Stalls are caught by the per-chunk watchdog instead.
		client:       &http.Client{Timeout: 0},
		baseURL:      config.BaseURL,
		userAgent:    config.UserAgent,
		stallTimeout: stallTimeout,
		logger:       logger,
	}
}

// episodeURL maps an episode triple onto the remote content endpoint
func (s *HTTPContentSource) episodeURL(req domain.FetchRequest) string {
	return fmt.Sprintf("%s/anime/%s/episodes/%d/%s", s.baseURL, req.AnimeID, req.EpisodeNumber, req.AudioType)
}

// Fetch streams one episode into dest. When req.Offset > 0 it asks the server
// to resume with a Range request; a server that answers 200 instead of 206
// restarts the transfer from zero, which the caller tolerates.
func (s *HTTPContentSource) Fetch(ctx context.Context, req domain.FetchRequest, dest string, report domain.ProgressFunc) (*domain.FetchInfo, error) {
	// The watchdog cancels the request when no chunk arrives within the
	// stall timeout, so a dead connection becomes a failed item instead of
	// a hung worker.
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Armed before the request goes out: a server that accepts the
	// connection and never sends response headers stalls just as hard as one
	// that goes quiet mid-body.
	errStalled := fmt.Errorf("transfer stalled for %s", s.stallTimeout)
	watchdog := time.AfterFunc(s.stallTimeout, func() { cancel(errStalled) })
	defer watchdog.Stop()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.episodeURL(req), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", s.userAgent)
	if req.Offset > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", req.Offset))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if cause := context.Cause(reqCtx); cause != nil && cause != reqCtx.Err() {
			return nil, cause
		}
		return nil, err
	}
	defer resp.Body.Close()
	watchdog.Reset(s.stallTimeout)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	resumed := req.Offset > 0 && resp.StatusCode == http.StatusPartialContent
	if req.Offset > 0 && !resumed {
		s.logger.Debug("Server ignored range request, restarting from zero",
			zap.String("anime_id", req.AnimeID),
			zap.Int("episode", req.EpisodeNumber))
	}

	var written int64
	flags := os.O_CREATE | os.O_WRONLY
	if resumed {
		flags |= os.O_APPEND
		written = req.Offset
	} else {
		flags |= os.O_TRUNC
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, err
	}
	out, err := os.OpenFile(dest, flags, 0644)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	var total int64
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			total = v
			if resumed {
				total += req.Offset
			}
		}
	}

	info := &domain.FetchInfo{TotalSize: total, Resumed: resumed}

	buf := make([]byte, fetchChunkSize)
	for {
		// Check for cancellation before each chunk so pause/cancel takes
		// effect within one read granularity.
		select {
		case <-reqCtx.Done():
			if cause := context.Cause(reqCtx); cause != nil && cause != reqCtx.Err() {
				return info, cause
			}
			return info, reqCtx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(s.stallTimeout)
			wn, werr := out.Write(buf[:n])
			if werr != nil {
				return info, werr
			}
			if wn != n {
				return info, io.ErrShortWrite
			}
			written += int64(n)
			if report != nil {
				report(written, total)
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if cause := context.Cause(reqCtx); cause != nil && cause != reqCtx.Err() {
				return info, cause
			}
			return info, readErr
		}
	}

	if err := out.Sync(); err != nil {
		return info, err
	}

	if info.TotalSize == 0 {
		info.TotalSize = written
	}
	if report != nil {
		report(written, info.TotalSize)
	}

	return info, nil
}
