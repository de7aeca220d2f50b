// Package youtube resolves song requests into playable tracks.
package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	yt "github.com/kkdai/youtube/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/akira-bot/deejay/internal/domain/track"
)

const (
	watchURL           = "https://www.youtube.com/watch?v="
	maxPlaylistEntries = 50
)

// Config represents YouTube client configuration.
type Config struct {
	APIKey     string        // Data API key, used for text search
	Proxy      string        // Optional http, https or socks5 proxy URL
	Timeout    time.Duration // Per HTTP request
	MaxRetries int
}

// Client resolves URLs with the innertube client and text queries with the Data API.
type Client struct {
	videos     *yt.Client
	search     *ytapi.Service
	maxRetries int
	retryDelay time.Duration
}

// New creates a new YouTube client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient, err := newHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	search, err := ytapi.NewService(ctx, option.WithAPIKey(cfg.APIKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create youtube data api service")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		videos:     &yt.Client{HTTPClient: httpClient},
		search:     search,
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}, nil
}

// newHTTPClient builds an HTTP client routed through proxyStr, if set.
func newHTTPClient(proxyStr string, timeout time.Duration) (*http.Client, error) {
	if proxyStr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid proxy url")
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create socks5 dialer")
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		return nil, errors.Newf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	zlog.Info().Msgf("youtube requests go through %s proxy %s", proxyURL.Scheme, proxyURL.Host)
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// queryKind classifies a request.
type queryKind int

const (
	kindSearch queryKind = iota
	kindVideo
	kindPlaylist
)

// classify decides how query is resolved. Links to other sites are invalid.
func classify(query string) (queryKind, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, errors.Wrap(track.ErrInvalidQuery, "empty query")
	}

	// Free text may contain colons ("artist: song"); only a scheme with a host makes a link
	u, err := url.Parse(query)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if strings.Contains(query, "://") {
			return 0, errors.Wrapf(track.ErrInvalidQuery, "%q", query)
		}
		return kindSearch, nil
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return 0, errors.Wrapf(track.ErrInvalidQuery, "unsupported scheme in %q", query)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")

	switch host {
	case "youtu.be":
		return kindVideo, nil
	case "youtube.com":
		values := u.Query()
		if values.Get("list") != "" && values.Get("v") == "" {
			return kindPlaylist, nil
		}
		if values.Get("v") != "" || strings.HasPrefix(u.Path, "/shorts/") || strings.HasPrefix(u.Path, "/live/") {
			return kindVideo, nil
		}
	}
	return 0, errors.Wrapf(track.ErrInvalidQuery, "%q", query)
}

// Resolve implements track.Resolver.
func (c *Client) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	kind, err := classify(query)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	switch kind {
	case kindPlaylist:
		return c.resolvePlaylist(ctx, query)
	case kindVideo:
		t, err := c.resolveVideo(ctx, query)
		if err != nil {
			return nil, err
		}
		return []track.Track{t}, nil
	default:
		id, err := c.searchVideoID(ctx, query)
		if err != nil {
			return nil, err
		}
		t, err := c.resolveVideo(ctx, watchURL+id)
		if err != nil {
			return nil, err
		}
		return []track.Track{t}, nil
	}
}

// searchVideoID returns the ID of the top video result for query.
func (c *Client) searchVideoID(ctx context.Context, query string) (string, error) {
	var resp *ytapi.SearchListResponse
	err := c.retry(ctx, func() error {
		var err error
		resp, err = c.search.Search.List([]string{"id", "snippet"}).
			Q(query).
			Type("video").
			MaxResults(1).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "youtube search failed")
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return item.Id.VideoId, nil
		}
	}
	return "", errors.Wrapf(track.ErrNoResultsFound, "%q", query)
}

// resolveVideo fetches metadata and a stream URL for a single video.
func (c *Client) resolveVideo(ctx context.Context, videoURL string) (track.Track, error) {
	if _, err := yt.ExtractVideoID(videoURL); err != nil {
		return track.Track{}, errors.Wrapf(track.ErrInvalidQuery, "%q", videoURL)
	}

	var video *yt.Video
	err := c.retry(ctx, func() error {
		var err error
		video, err = c.videos.GetVideoContext(ctx, videoURL)
		return err
	})
	if err != nil {
		if isUnavailable(err) {
			return track.Track{}, errors.Wrapf(track.ErrNoResultsFound, "%s: %v", videoURL, err)
		}
		return track.Track{}, errors.Wrap(err, "failed to fetch video")
	}
	return c.toTrack(ctx, video)
}

// resolvePlaylist resolves up to maxPlaylistEntries playable entries of a playlist.
// Entries that fail to resolve are skipped.
func (c *Client) resolvePlaylist(ctx context.Context, playlistURL string) ([]track.Track, error) {
	var playlist *yt.Playlist
	err := c.retry(ctx, func() error {
		var err error
		playlist, err = c.videos.GetPlaylistContext(ctx, playlistURL)
		return err
	})
	if err != nil {
		if isUnavailable(err) {
			return nil, errors.Wrapf(track.ErrNoResultsFound, "%s: %v", playlistURL, err)
		}
		return nil, errors.Wrap(err, "failed to fetch playlist")
	}

	entries := playlist.Videos
	if len(entries) > maxPlaylistEntries {
		zlog.Info().Msgf("playlist %q has %d entries, keeping the first %d", playlist.Title, len(entries), maxPlaylistEntries)
		entries = entries[:maxPlaylistEntries]
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		video, err := c.videos.VideoFromPlaylistEntryContext(ctx, entry)
		if err != nil {
			zlog.Warn().Err(err).Msgf("skipping playlist entry %s", entry.ID)
			continue
		}
		t, err := c.toTrack(ctx, video)
		if err != nil {
			zlog.Warn().Err(err).Msgf("skipping playlist entry %s", entry.ID)
			continue
		}
		tracks = append(tracks, t)
	}

	if len(tracks) == 0 {
		return nil, errors.Wrapf(track.ErrNoResultsFound, "no playable entries in %s", playlistURL)
	}
	return tracks, nil
}

// toTrack picks the audio format and resolves its stream URL.
func (c *Client) toTrack(ctx context.Context, video *yt.Video) (track.Track, error) {
	format, err := pickAudioFormat(video.Formats)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "video %s", video.ID)
	}

	var streamURL string
	err = c.retry(ctx, func() error {
		var err error
		streamURL, err = c.videos.GetStreamURLContext(ctx, video, format)
		return err
	})
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to get stream url")
	}

	return track.Track{
		Title:        video.Title,
		Duration:     video.Duration.Truncate(time.Second),
		StreamURL:    streamURL,
		WebpageURL:   watchURL + video.ID,
		ThumbnailURL: bestThumbnail(video.Thumbnails),
	}, nil
}

// pickAudioFormat prefers audio-only formats, then any format with audio.
func pickAudioFormat(formats yt.FormatList) (*yt.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, errors.New("no audio formats found")
	}
	for i := range withAudio {
		if strings.HasPrefix(withAudio[i].MimeType, "audio/") {
			return &withAudio[i], nil
		}
	}
	return &withAudio[0], nil
}

// bestThumbnail returns the last, largest, thumbnail URL.
func bestThumbnail(thumbnails yt.Thumbnails) string {
	if len(thumbnails) == 0 {
		return ""
	}
	return thumbnails[len(thumbnails)-1].URL
}

// retry runs fn until it succeeds, fails permanently or attempts run out.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "connection reset")
}

// isUnavailable reports errors meaning the video or playlist does not exist or cannot be played.
func isUnavailable(err error) bool {
	var playability *yt.ErrPlayabiltyStatus
	if errors.As(err, &playability) {
		return true
	}
	return errors.Is(err, yt.ErrVideoPrivate) ||
		errors.Is(err, yt.ErrNotPlayableInEmbed) ||
		errors.Is(err, yt.ErrLoginRequired) ||
		errors.Is(err, yt.ErrInvalidPlaylist)
}

var _ track.Resolver = (*Client)(nil)
