package logger

import "github.com/rs/zerolog"

// Verbosity is one of the six levels a plugin-facing scoped logger
// supports. Error is the least verbose, Trace the most.
type Verbosity int

const (
	VerbosityError Verbosity = iota
	VerbosityWarn
	VerbosityInfo
	VerbosityVerbose
	VerbosityDebug
	VerbosityTrace
)

// ParseVerbosity maps a config string to a Verbosity, defaulting to Info on
// an unrecognized value.
func ParseVerbosity(s string) Verbosity {
	switch s {
	case "error":
		return VerbosityError
	case "warn":
		return VerbosityWarn
	case "verbose":
		return VerbosityVerbose
	case "debug":
		return VerbosityDebug
	case "trace":
		return VerbosityTrace
	default:
		return VerbosityInfo
	}
}

// Scoped is the per-component logger handed to plugins and other
// consumers: it binds a component name (and, per-server, the server id)
// and gates each of the six levels against a configured verbosity
// independent of zerolog's own global level.
type Scoped struct {
	log       zerolog.Logger
	verbosity Verbosity
}

// NewScoped binds component (and optional extra fields already applied to
// base via With()) at the given verbosity.
func NewScoped(base zerolog.Logger, component string, verbosity Verbosity) *Scoped {
	return &Scoped{log: base.With().Str("component", component).Logger(), verbosity: verbosity}
}

func (s *Scoped) enabled(v Verbosity) bool { return s.verbosity >= v }

func (s *Scoped) Error(msg string, err error) {
	if s.enabled(VerbosityError) {
		s.log.Error().Err(err).Msg(msg)
	}
}

func (s *Scoped) Warn(msg string) {
	if s.enabled(VerbosityWarn) {
		s.log.Warn().Msg(msg)
	}
}

func (s *Scoped) Info(msg string) {
	if s.enabled(VerbosityInfo) {
		s.log.Info().Msg(msg)
	}
}

// Verbose sits between Info and Debug; zerolog has no native level for it,
// so it is emitted at zerolog's Debug level, gated by this logger's own
// verbosity rather than zerolog's global level.
func (s *Scoped) Verbose(msg string) {
	if s.enabled(VerbosityVerbose) {
		s.log.Debug().Msg(msg)
	}
}

func (s *Scoped) Debug(msg string) {
	if s.enabled(VerbosityDebug) {
		s.log.Debug().Msg(msg)
	}
}

func (s *Scoped) Trace(msg string) {
	if s.enabled(VerbosityTrace) {
		s.log.Trace().Msg(msg)
	}
}

// With returns a child Scoped with an additional field, inheriting
// verbosity.
func (s *Scoped) With(key, value string) *Scoped {
	return &Scoped{log: s.log.With().Str(key, value).Logger(), verbosity: s.verbosity}
}

// Raw exposes the underlying zerolog.Logger for callers (e.g. other
// internal packages) that want structured field chaining beyond the six
// fixed levels above.
func (s *Scoped) Raw() zerolog.Logger { return s.log }
