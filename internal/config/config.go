package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dpedu/b2mirror/internal/blob"
	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/dpedu/b2mirror/internal/utils"
)

const (
	DefaultRegion   = "us-east-1"
	DefaultB2Region = "us-west-004"
	EnvPrefix       = "B2MIRROR"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigDir  = filepath.Join(home, ".config", "b2mirror")
	DefaultConfigName = "config"
)

// Config is the resolved input of one sync run.
type Config struct {
	Source      string   `mapstructure:"source"`
	Destination string   `mapstructure:"destination"`
	Workers     int      `mapstructure:"workers"`
	BatchSize   int      `mapstructure:"batch_size"`
	Excludes    []string `mapstructure:"exclude"`
	ExcludeFrom string   `mapstructure:"exclude_from"`
	Compare     string   `mapstructure:"compare"`
	Keep        int      `mapstructure:"keep"`
	IndexPath   string   `mapstructure:"index"`

	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`

	SourceLoc *Location `mapstructure:"-"`
	DestLoc   *Location `mapstructure:"-"`
}

// Validate fills defaults, parses both locations and normalizes paths. It
// performs no network I/O.
func (c *Config) Validate() error {
	var err error

	if c.SourceLoc, err = ParseSource(c.Source); err != nil {
		return err
	}
	if c.SourceLoc.Path, err = utils.ResolvePath(c.SourceLoc.Path); err != nil {
		return fmt.Errorf("%w: source: %w", mirror.ErrConfig, err)
	}
	if !utils.DirExists(c.SourceLoc.Path) {
		return fmt.Errorf("%w: source %q is not a directory", mirror.ErrConfig, c.SourceLoc.Path)
	}

	if err := c.ValidateDestination(); err != nil {
		return err
	}

	if c.Workers == 0 {
		c.Workers = mirror.DefaultWorkers
	} else if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be positive", mirror.ErrConfig)
	}

	if c.BatchSize == 0 {
		c.BatchSize = mirror.DefaultBatchSize
	} else if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must be positive", mirror.ErrConfig)
	}

	if c.Keep == 0 {
		c.Keep = blob.DefaultKeep
	} else if c.Keep < 1 {
		return fmt.Errorf("%w: keep must be at least 1", mirror.ErrConfig)
	}

	if _, err := mirror.NewChangeDetector(c.Compare); err != nil {
		return err
	}
	if c.Compare == "" {
		c.Compare = mirror.CompareMtime
	}

	if c.ExcludeFrom != "" {
		if c.ExcludeFrom, err = utils.ResolvePath(c.ExcludeFrom); err != nil {
			return fmt.Errorf("%w: exclude file: %w", mirror.ErrConfig, err)
		}
		if !utils.FileExists(c.ExcludeFrom) {
			return fmt.Errorf("%w: exclude file %q not found", mirror.ErrConfig, c.ExcludeFrom)
		}
	}

	if c.IndexPath == "" {
		c.IndexPath, err = DefaultIndexPath(c.DestLoc)
		if err != nil {
			return err
		}
	} else if c.IndexPath, err = utils.ResolvePath(c.IndexPath); err != nil {
		return fmt.Errorf("%w: index path: %w", mirror.ErrConfig, err)
	}

	return nil
}

// ValidateDestination checks only what talking to the bucket needs: the
// destination location and the credentials.
func (c *Config) ValidateDestination() error {
	var err error
	if c.DestLoc, err = ParseDestination(c.Destination); err != nil {
		return err
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("%w: access key and secret key must be set together", mirror.ErrConfig)
	}
	if c.DestLoc.Scheme == SchemeB2 && c.AccessKey == "" {
		return fmt.Errorf("%w: b2 destinations need an application key", mirror.ErrConfig)
	}
	return nil
}

// S3Config maps the destination and credentials to a blob client config.
func (c *Config) S3Config() (*blob.S3Config, error) {
	if c.DestLoc == nil {
		return nil, errors.New("config not validated")
	}

	var cfg *blob.S3Config
	switch c.DestLoc.Scheme {
	case SchemeB2:
		region := c.Region
		if region == "" {
			region = DefaultB2Region
		}
		cfg = blob.WithB2Config(c.DestLoc.Bucket, region, c.AccessKey, c.SecretKey)
	case SchemeS3:
		region := c.Region
		if region == "" {
			region = DefaultRegion
		}
		cfg = blob.WithS3Config(c.DestLoc.Bucket, region, c.AccessKey, c.SecretKey)
	default:
		return nil, fmt.Errorf("%w: unsupported destination %s", mirror.ErrConfig, c.DestLoc)
	}

	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
		cfg.PathStyle = c.DestLoc.Scheme == SchemeS3
	}
	return cfg, nil
}

// DefaultIndexPath is the per-destination cache location of the index:
// $XDG_CACHE_HOME/b2mirror/<bucket>/<prefix-hash>.db
func DefaultIndexPath(dest *Location) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: no cache directory: %w", mirror.ErrConfig, err)
	}
	sum := sha256.Sum256([]byte(dest.Scheme + "://" + dest.Prefix))
	name := hex.EncodeToString(sum[:8]) + ".db"
	return filepath.Join(cacheDir, "b2mirror", dest.Bucket, name), nil
}
