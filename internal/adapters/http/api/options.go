package api

import "github.com/okian/rehearsal/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithJWTSecret enables HS256 bearer token authentication. Without a secret
// the X-User-ID header is trusted.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.auth = newAuthenticator([]byte(secret))
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStatsProvider exposes GET /stats.
func WithStatsProvider(p StatsProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.statsHandler = NewStatsHandler(p)
		}
	}
}
