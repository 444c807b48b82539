// Package logwatcher implements source-agnostic log line delivery
// (local tail, FTP polling, SFTP polling) with rotation detection, a
// bounded drop-oldest queue, the ordered rule engine, and the correlation
// event store. Grounded on the reference pack's
// internal/logwatcher_manager/{log_sources,log_parser,event_store}.go.
package logwatcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"golang.org/x/crypto/ssh"
)

// SourceMode selects which concrete Source implementation to construct.
type SourceMode string

const (
	ModeTail SourceMode = "tail"
	ModeFTP  SourceMode = "ftp"
	ModeSFTP SourceMode = "sftp"
)

// SourceConfig is the values-only configuration for a log reader.
type SourceConfig struct {
	Mode          SourceMode
	LogDir        string
	Filename      string
	Host          string
	Port          int
	User          string
	Password      string
	Secure        bool
	FetchInterval time.Duration
	PollInterval  time.Duration
	StartFromEnd  bool
}

// Source errors, surfaced distinctly on Watch initialization so callers
// can apply reconnect/backoff policy differently per failure mode.
var (
	ErrFileNotFound     = fmt.Errorf("logwatcher: file not found")
	ErrAuthFailed       = fmt.Errorf("logwatcher: authentication failed")
	ErrConnectionFailed = fmt.Errorf("logwatcher: connection failed")
)

// Source is the common contract all three log readers satisfy.
type Source interface {
	// Watch starts delivery; lines are newline-stripped (CR?LF).
	Watch(ctx context.Context, onLine func(string)) error
	Unwatch()
	Path() string
	IsWatching() bool
}

// lineSplitter implements the shared line-buffer discipline: append each
// chunk, split on \r?\n, deliver all but the last (possibly incomplete)
// fragment, and carry the remainder.
type lineSplitter struct {
	buf strings.Builder
}

func (s *lineSplitter) feed(chunk []byte, onLine func(string)) {
	s.buf.Write(chunk)
	data := s.buf.String()
	s.buf.Reset()

	lines := strings.Split(data, "\n")
	for i, line := range lines {
		if i == len(lines)-1 {
			s.buf.WriteString(line)
			continue
		}
		onLine(strings.TrimSuffix(line, "\r"))
	}
}

func (s *lineSplitter) reset() { s.buf.Reset() }

// -- Local tail source -------------------------------------------------

// LocalSource tails a local file, reopening across rotation. Grounded on
// log_sources.go's LocalFileSource, built on hpcloud/tail in polling mode
// (Poll: true); filesystem notifications are not used.
type LocalSource struct {
	cfg SourceConfig
	log zerolog.Logger

	mu        sync.Mutex
	watching  bool
	t         *tail.Tail
	cancelled context.CancelFunc
}

// NewLocalSource constructs a local tail source for cfg.LogDir/cfg.Filename.
func NewLocalSource(cfg SourceConfig, log zerolog.Logger) *LocalSource {
	return &LocalSource{cfg: cfg, log: log.With().Str("component", "logwatcher.local").Logger()}
}

func (l *LocalSource) Path() string { return l.cfg.LogDir + "/" + l.cfg.Filename }

func (l *LocalSource) IsWatching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

func (l *LocalSource) Watch(ctx context.Context, onLine func(string)) error {
	whence := io.SeekStart
	if l.cfg.StartFromEnd {
		whence = io.SeekEnd
	}

	t, err := tail.TailFile(l.Path(), tail.Config{
		ReOpen:    true,
		Follow:    true,
		Poll:      true,
		MustExist: true,
		Location:  &tail.SeekInfo{Whence: whence},
	})
	if err != nil {
		return oops.Wrapf(ErrFileNotFound, "tail %s: %v", l.Path(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.t = t
	l.cancelled = cancel
	l.watching = true
	l.mu.Unlock()

	go func() {
		for {
			select {
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					l.log.Debug().Err(line.Err).Msg("transient tail read error, retrying next tick")
					continue
				}
				onLine(strings.TrimSuffix(line.Text, "\r"))
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (l *LocalSource) Unwatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.watching {
		return
	}
	l.watching = false
	if l.cancelled != nil {
		l.cancelled()
	}
	if l.t != nil {
		_ = l.t.Stop()
	}
}

// -- Shared remote polling scaffolding -----------------------------------

// remotePoller captures the last_position/rotation/overlap-prevention
// discipline common to FTP and SFTP sources.
type remotePoller struct {
	mu           sync.Mutex
	lastPosition int64
	polling      bool
	splitter     lineSplitter
}

func (p *remotePoller) beginPoll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.polling {
		return false
	}
	p.polling = true
	return true
}

func (p *remotePoller) endPoll() {
	p.mu.Lock()
	p.polling = false
	p.mu.Unlock()
}

// observe applies the rotation heuristic and returns (shouldFetch,
// fetchFrom). When size < last position, rotation is assumed: position
// resets to 0 and the line buffer is cleared.
func (p *remotePoller) observe(size int64) (fetch bool, from int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size < p.lastPosition {
		p.lastPosition = 0
		p.splitter.reset()
	}
	if size > p.lastPosition {
		from = p.lastPosition
		p.lastPosition = size
		return true, from
	}
	return false, 0
}

// -- FTP source -----------------------------------------------------------

// FTPSource polls a remote file over FTP. Grounded on log_sources.go's
// FTPSource (periodic poll, rotation reset, self-mutex against overlap,
// silent retry of transient remote errors).
type FTPSource struct {
	cfg SourceConfig
	log zerolog.Logger

	poller remotePoller

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
}

func NewFTPSource(cfg SourceConfig, log zerolog.Logger) *FTPSource {
	return &FTPSource{cfg: cfg, log: log.With().Str("component", "logwatcher.ftp").Logger()}
}

func (f *FTPSource) Path() string { return f.cfg.LogDir + "/" + f.cfg.Filename }

func (f *FTPSource) IsWatching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watching
}

func (f *FTPSource) dial() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return nil, oops.Wrapf(ErrConnectionFailed, "dial %s: %v", addr, err)
	}
	if err := conn.Login(f.cfg.User, f.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, oops.Wrapf(ErrAuthFailed, "login: %v", err)
	}
	return conn, nil
}

func (f *FTPSource) Watch(ctx context.Context, onLine func(string)) error {
	conn, err := f.dial()
	if err != nil {
		return err
	}
	size, err := conn.FileSize(f.Path())
	if err != nil {
		_ = conn.Quit()
		return oops.Wrapf(ErrFileNotFound, "stat %s: %v", f.Path(), err)
	}
	if f.cfg.StartFromEnd {
		f.poller.mu.Lock()
		f.poller.lastPosition = size
		f.poller.mu.Unlock()
	}
	_ = conn.Quit()

	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.watching = true
	f.cancel = cancel
	f.mu.Unlock()

	interval := f.cfg.FetchInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.poll(onLine)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (f *FTPSource) poll(onLine func(string)) {
	if !f.poller.beginPoll() {
		return
	}
	defer f.poller.endPoll()

	conn, err := f.dial()
	if err != nil {
		f.log.Debug().Err(err).Msg("transient ftp poll error, retrying next tick")
		return
	}
	defer conn.Quit()

	size, err := conn.FileSize(f.Path())
	if err != nil {
		f.log.Debug().Err(err).Msg("transient ftp stat error, retrying next tick")
		return
	}

	fetch, from := f.poller.observe(size)
	if !fetch {
		return
	}

	resp, err := conn.RetrFrom(f.Path(), uint64(from))
	if err != nil {
		f.log.Debug().Err(err).Msg("transient ftp retr error, retrying next tick")
		return
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		f.log.Debug().Err(err).Msg("transient ftp read error, retrying next tick")
		return
	}
	f.poller.splitter.feed(data, onLine)
}

func (f *FTPSource) Unwatch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.watching {
		return
	}
	f.watching = false
	if f.cancel != nil {
		f.cancel()
	}
}

// -- SFTP source ------------------------------------------------------

// SFTPSource polls a remote file over SFTP. Grounded on log_sources.go's
// SFTPSource (rotation reset, self-mutex). Each poll dials afresh; a failed
// poll is dropped and retried on the next tick, with no backoff.
type SFTPSource struct {
	cfg SourceConfig
	log zerolog.Logger

	poller remotePoller

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
}

func NewSFTPSource(cfg SourceConfig, log zerolog.Logger) *SFTPSource {
	return &SFTPSource{cfg: cfg, log: log.With().Str("component", "logwatcher.sftp").Logger()}
}

func (s *SFTPSource) Path() string { return s.cfg.LogDir + "/" + s.cfg.Filename }

func (s *SFTPSource) IsWatching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

func (s *SFTPSource) dial() (*sftp.Client, io.Closer, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	sshConn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(s.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, nil, oops.Wrapf(ErrConnectionFailed, "ssh dial %s: %v", addr, err)
	}
	client, err := sftp.NewClient(sshConn)
	if err != nil {
		_ = sshConn.Close()
		return nil, nil, oops.Wrapf(ErrAuthFailed, "sftp client: %v", err)
	}
	return client, sshConn, nil
}

func (s *SFTPSource) Watch(ctx context.Context, onLine func(string)) error {
	client, conn, err := s.dial()
	if err != nil {
		return err
	}
	info, err := client.Stat(s.Path())
	if err != nil {
		_ = client.Close()
		_ = conn.Close()
		return oops.Wrapf(ErrFileNotFound, "stat %s: %v", s.Path(), err)
	}
	if s.cfg.StartFromEnd {
		s.poller.mu.Lock()
		s.poller.lastPosition = info.Size()
		s.poller.mu.Unlock()
	}
	_ = client.Close()
	_ = conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watching = true
	s.cancel = cancel
	s.mu.Unlock()

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.poll(onLine)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *SFTPSource) poll(onLine func(string)) {
	if !s.poller.beginPoll() {
		return
	}
	defer s.poller.endPoll()

	client, conn, err := s.dial()
	if err != nil {
		s.log.Debug().Err(err).Msg("transient sftp reconnect error, retrying next tick")
		return
	}
	defer client.Close()
	defer conn.Close()

	info, err := client.Stat(s.Path())
	if err != nil {
		s.log.Debug().Err(err).Msg("transient sftp stat error, retrying next tick")
		return
	}

	fetch, from := s.poller.observe(info.Size())
	if !fetch {
		return
	}

	file, err := client.Open(s.Path())
	if err != nil {
		s.log.Debug().Err(err).Msg("transient sftp open error, retrying next tick")
		return
	}
	defer file.Close()

	if _, err := file.Seek(from, io.SeekStart); err != nil {
		s.log.Debug().Err(err).Msg("transient sftp seek error, retrying next tick")
		return
	}

	reader := bufio.NewReader(file)
	data, err := io.ReadAll(reader)
	if err != nil {
		s.log.Debug().Err(err).Msg("transient sftp read error, retrying next tick")
		return
	}
	s.poller.splitter.feed(data, onLine)
}

func (s *SFTPSource) Unwatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watching {
		return
	}
	s.watching = false
	if s.cancel != nil {
		s.cancel()
	}
}

// NewSource constructs the concrete Source for cfg.Mode.
func NewSource(cfg SourceConfig, log zerolog.Logger) (Source, error) {
	switch cfg.Mode {
	case ModeTail, "":
		return NewLocalSource(cfg, log), nil
	case ModeFTP:
		return NewFTPSource(cfg, log), nil
	case ModeSFTP:
		return NewSFTPSource(cfg, log), nil
	default:
		return nil, fmt.Errorf("logwatcher: unknown source mode %q", cfg.Mode)
	}
}
