package ytvideodata

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidVideoURL = errors.New("invalid youtube video url")

var videoIdRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractID accepts watch, short, embed and youtu.be urls as well as a bare id.
func ExtractID(videoURL string) (string, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoIdRe.MatchString(videoURL) {
		return videoURL, nil
	}

	u, err := url.Parse(videoURL)
	if err != nil {
		return "", ErrInvalidVideoURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.TrimPrefix(u.Path, "/live/")
		}
	}

	id = strings.SplitN(id, "/", 2)[0]
	if !videoIdRe.MatchString(id) {
		return "", ErrInvalidVideoURL
	}

	return id, nil
}
