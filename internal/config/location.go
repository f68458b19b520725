package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dpedu/b2mirror/internal/mirror"
)

const (
	SchemeLocal = ""
	SchemeS3    = "s3"
	SchemeB2    = "b2"
)

// Location is a parsed source or destination argument.
type Location struct {
	Scheme string
	// Path is set for local locations
	Path string
	// Bucket and Prefix are set for remote locations
	Bucket string
	Prefix string
}

func (l *Location) IsLocal() bool {
	return l.Scheme == SchemeLocal
}

func (l *Location) String() string {
	if l.IsLocal() {
		return l.Path
	}
	if l.Prefix == "" {
		return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
}

// ParseLocation splits raw into scheme, bucket and prefix. A value without
// a scheme is a local path.
func ParseLocation(raw string) (*Location, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty location", mirror.ErrConfig)
	}
	if !strings.Contains(raw, "://") {
		return &Location{Scheme: SchemeLocal, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: location %q: %w", mirror.ErrConfig, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case SchemeS3, SchemeB2:
	case "file":
		return &Location{Scheme: SchemeLocal, Path: u.Path}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", mirror.ErrConfig, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: location %q has no bucket", mirror.ErrConfig, raw)
	}

	return &Location{
		Scheme: scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// ParseSource accepts only local paths.
func ParseSource(raw string) (*Location, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if !loc.IsLocal() {
		return nil, fmt.Errorf("%w: source must be a local path, got %s", mirror.ErrConfig, loc)
	}
	return loc, nil
}

// ParseDestination accepts only bucket locations.
func ParseDestination(raw string) (*Location, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if loc.IsLocal() {
		return nil, fmt.Errorf("%w: destination must be s3:// or b2://, got %q", mirror.ErrConfig, raw)
	}
	return loc, nil
}
