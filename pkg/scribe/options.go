package scribe

import (
	"io"
	"time"

	"github.com/PentesterFlow/OpenScribe/internal/logger"
)

// Option is a functional option for configuring the Scribe.
type Option func(*Scribe) error

// WithTarget sets the origin traffic is forwarded to.
func WithTarget(url string) Option {
	return func(s *Scribe) error {
		s.config.Target = url
		return nil
	}
}

// WithListen sets the proxy listen address.
func WithListen(addr string) Option {
	return func(s *Scribe) error {
		s.config.Listen = addr
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Scribe) error {
		if cfg != nil {
			s.config = cfg.Clone()
		}
		return nil
	}
}

// WithTitle sets the generated document's title and version.
func WithTitle(title, version string) Option {
	return func(s *Scribe) error {
		s.config.Title = title
		s.config.Version = version
		return nil
	}
}

// WithTimeout sets the upstream request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scribe) error {
		s.config.Timeout = timeout
		return nil
	}
}

// WithMaxBodyBytes caps how much of each body is captured.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Scribe) error {
		if n > 0 {
			s.config.MaxBodyBytes = n
		}
		return nil
	}
}

// WithRateLimit throttles forwarded traffic.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Scribe) error {
		s.config.RateLimit.RequestsPerSecond = rps
		s.config.RateLimit.Burst = burst
		return nil
	}
}

// WithStateFile enables persistence at the given path.
func WithStateFile(path string) Option {
	return func(s *Scribe) error {
		s.config.State.Enabled = path != ""
		s.config.State.FilePath = path
		return nil
	}
}

// WithFormDiscovery toggles endpoint discovery from HTML forms.
func WithFormDiscovery(enabled bool) Option {
	return func(s *Scribe) error {
		s.config.FormDiscovery = enabled
		return nil
	}
}

// WithSyncRecording makes capture happen on the request path. Mostly
// useful in tests that read the document right after a request.
func WithSyncRecording() Option {
	return func(s *Scribe) error {
		s.config.RecordAsync = false
		return nil
	}
}

// WithSkipTLSVerify disables upstream certificate checks.
func WithSkipTLSVerify(skip bool) Option {
	return func(s *Scribe) error {
		s.config.SkipTLSVerify = skip
		return nil
	}
}

// WithVerbose enables info-level logging.
func WithVerbose(verbose bool) Option {
	return func(s *Scribe) error {
		s.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug-level logging.
func WithDebug(debug bool) Option {
	return func(s *Scribe) error {
		s.config.Debug = debug
		return nil
	}
}

// WithLogger replaces the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scribe) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithLogOutput redirects log output.
func WithLogOutput(w io.Writer) Option {
	return func(s *Scribe) error {
		s.logOutput = w
		return nil
	}
}
