package ytvideodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultOEmbedURL = "https://www.youtube.com/oembed"
	defaultPageURL   = "https://youtu.be/"
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

type Resolver struct {
	client    *http.Client
	oembedURL string
	pageURL   string
	breaker   *gobreaker.CircuitBreaker[*VideoData]
}

type Option func(*Resolver)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithEndpoints overrides the oEmbed endpoint and the watch page prefix.
func WithEndpoints(oembedURL, pageURL string) Option {
	return func(r *Resolver) {
		r.oembedURL = oembedURL
		r.pageURL = pageURL
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		client:    &http.Client{Timeout: 5 * time.Second},
		oembedURL: defaultOEmbedURL,
		pageURL:   defaultPageURL,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker[*VideoData](gobreaker.Settings{
		Name:        "ytvideodata",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// unknown videos are an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrVideoNotFound) || errors.Is(err, ErrInvalidVideoURL)
		},
	})

	return r
}

// Get resolves metadata for a YouTube url or bare video id.
func (r *Resolver) Get(ctx context.Context, videoURL string) (*VideoData, error) {
	videoId, err := ExtractID(videoURL)
	if err != nil {
		return nil, err
	}

	return r.breaker.Execute(func() (*VideoData, error) {
		videoData, err := r.getVideoWithEmbed(ctx, videoId)
		if err != nil {
			if !errors.Is(err, ErrVideoNotEmbeddable) {
				return nil, fmt.Errorf("failed to get video data with embed: %w", err)
			}

			videoData, err = r.getFromPage(ctx, videoId)
			if err != nil {
				return nil, fmt.Errorf("failed to get video data from page: %w", err)
			}
		}

		return videoData, nil
	})
}
