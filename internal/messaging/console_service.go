package messaging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// ConsoleUserID is the pseudo user every console session runs as.
const ConsoleUserID = "console"

// ConsoleService implements the Service interface over stdin/stdout for
// local development. Images are written to a directory and their paths
// printed instead of being delivered.
type ConsoleService struct {
	in       io.Reader
	out      io.Writer
	mediaDir string
	userName string

	responses chan models.Response
	done      chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// ConsoleOpts holds configuration options for the console transport.
type ConsoleOpts struct {
	In       io.Reader
	Out      io.Writer
	MediaDir string
	UserName string
}

// ConsoleOption defines a configuration option for the console transport.
type ConsoleOption func(*ConsoleOpts)

// WithConsoleStreams overrides the input and output streams, used by tests.
func WithConsoleStreams(in io.Reader, out io.Writer) ConsoleOption {
	return func(o *ConsoleOpts) { o.In, o.Out = in, out }
}

// WithConsoleMediaDir sets the directory images are written to.
func WithConsoleMediaDir(dir string) ConsoleOption {
	return func(o *ConsoleOpts) { o.MediaDir = dir }
}

// WithConsoleUserName sets the display name reported for the console user.
func WithConsoleUserName(name string) ConsoleOption {
	return func(o *ConsoleOpts) { o.UserName = name }
}

// NewConsoleService creates a console transport.
func NewConsoleService(opts ...ConsoleOption) *ConsoleService {
	cfg := ConsoleOpts{
		In:       os.Stdin,
		Out:      os.Stdout,
		MediaDir: os.TempDir(),
		UserName: "Console User",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ConsoleService{
		in:        cfg.In,
		out:       cfg.Out,
		mediaDir:  cfg.MediaDir,
		userName:  cfg.UserName,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// SendMessage prints the message to the output stream.
func (s *ConsoleService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	_, err := fmt.Fprintf(s.out, "[bot -> %s]\n%s\n", to, body)
	return err
}

// SendImage writes the image to the media directory and prints its path
// along with the caption.
func (s *ConsoleService) SendImage(ctx context.Context, to string, caption string, image []byte) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	path := filepath.Join(s.mediaDir, uuid.NewString()+".png")
	if err := os.WriteFile(path, image, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	_, err := fmt.Fprintf(s.out, "[bot -> %s]\n%s\n(image saved to %s)\n", to, caption, path)
	return err
}

// Profile returns the configured console user profile.
func (s *ConsoleService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID != ConsoleUserID {
		return nil, nil
	}
	return &models.UserProfile{UserID: ConsoleUserID, DisplayName: s.userName}, nil
}

// Start begins reading lines from the input stream. Each line becomes a
// response from the console user.
func (s *ConsoleService) Start(ctx context.Context) error {
	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r\n")
			resp := models.Response{From: ConsoleUserID, Body: line, Time: time.Now().Unix()}
			select {
			case s.responses <- resp:
			case <-s.done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("ConsoleService input read failed", "error", err)
		}
		slog.Debug("ConsoleService input stream closed")
	}()
	return nil
}

// Stop stops the service and closes the response channel.
func (s *ConsoleService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// Responses returns the channel of console input lines.
func (s *ConsoleService) Responses() <-chan models.Response {
	return s.responses
}

func (s *ConsoleService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
