package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// TwilioSender abstracts the Twilio REST calls so tests can substitute a
// mock client.
type TwilioSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendMediaMessage(ctx context.Context, to string, body string, mediaURL string) error
}

// TwilioOpts holds configuration options for the Twilio WhatsApp transport.
type TwilioOpts struct {
	AccountSID    string
	AuthToken     string
	FromNumber    string
	WebhookAddr   string
	PublicBaseURL string
	MediaDir      string
}

// TwilioOption defines a configuration option for the Twilio transport.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending WhatsApp number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromNumber = from }
}

// WithWebhookAddr sets the listen address for the inbound webhook server.
func WithWebhookAddr(addr string) TwilioOption {
	return func(o *TwilioOpts) { o.WebhookAddr = addr }
}

// WithPublicBaseURL sets the externally reachable base URL used to build
// media links for outgoing images.
func WithPublicBaseURL(base string) TwilioOption {
	return func(o *TwilioOpts) { o.PublicBaseURL = base }
}

// WithMediaDir sets the directory where outgoing images are staged for
// Twilio to fetch.
func WithMediaDir(dir string) TwilioOption {
	return func(o *TwilioOpts) { o.MediaDir = dir }
}

// TwilioClient wraps the Twilio REST API for WhatsApp.
type TwilioClient struct {
	client     *twilio.RestClient
	fromNumber string // WhatsApp number in "whatsapp:+1234567890" format
}

// NewTwilioClient builds a Twilio REST client from options, falling back to
// environment variables.
func NewTwilioClient(opts ...TwilioOption) (*TwilioClient, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioClient{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendMessage sends a WhatsApp text message using the Twilio API.
func (c *TwilioClient) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// SendMediaMessage sends a WhatsApp message with an attached media URL.
func (c *TwilioClient) SendMediaMessage(ctx context.Context, to string, body string, mediaURL string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)
	params.SetMediaUrl([]string{mediaURL})

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMediaMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send media message to %s: %w", to, err)
	}

	slog.Debug("Twilio media message sent", "to", to, "media_url", mediaURL)
	return nil
}

// TwilioService implements the Service interface over the Twilio API. It
// runs an HTTP server for Twilio's inbound webhook and serves staged media
// for outgoing images.
type TwilioService struct {
	client        TwilioSender
	publicBaseURL string
	mediaDir      string
	webhookAddr   string

	server    *http.Server
	responses chan models.Response
	done      chan struct{}

	mu       sync.RWMutex
	stopped  bool
	profiles map[string]string
}

// NewTwilioService creates a TwilioService over the given sender.
func NewTwilioService(client TwilioSender, opts ...TwilioOption) (*TwilioService, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MediaDir == "" {
		return nil, fmt.Errorf("media directory must be provided")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("public base URL must be provided")
	}
	if cfg.WebhookAddr == "" {
		cfg.WebhookAddr = ":8081"
	}
	if err := os.MkdirAll(cfg.MediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &TwilioService{
		client:        client,
		publicBaseURL: cfg.PublicBaseURL,
		mediaDir:      cfg.MediaDir,
		webhookAddr:   cfg.WebhookAddr,
		responses:     make(chan models.Response, DefaultChannelBufferSize),
		done:          make(chan struct{}),
		profiles:      make(map[string]string),
	}, nil
}

// SendMessage sends a text message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendMessage(ctx, to, body)
}

// SendImage stages the image in the media directory and sends a media
// message referencing its public URL.
func (s *TwilioService) SendImage(ctx context.Context, to string, caption string, image []byte) error {
	if s.isStopped() {
		return ErrServiceStopped
	}

	name := uuid.NewString() + ".png"
	path := filepath.Join(s.mediaDir, name)
	if err := os.WriteFile(path, image, 0644); err != nil {
		slog.Error("TwilioService SendImage failed to stage media", "error", err, "path", path)
		return fmt.Errorf("failed to stage media file: %w", err)
	}

	mediaURL := s.publicBaseURL + "/media/" + name
	return s.client.SendMediaMessage(ctx, to, caption, mediaURL)
}

// Profile returns the WhatsApp profile name captured from the most recent
// inbound message, or (nil, nil) when the user has never written in.
func (s *TwilioService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &models.UserProfile{UserID: userID, DisplayName: name}, nil
}

// Start launches the webhook and media server.
func (s *TwilioService) Start(ctx context.Context) error {
	router := chi.NewRouter()
	router.Post("/twilio/inbound", s.handleInbound)
	router.Get("/media/{name}", s.handleMedia)

	s.server = &http.Server{Addr: s.webhookAddr, Handler: router}
	go func() {
		slog.Debug("TwilioService webhook server starting", "addr", s.webhookAddr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("TwilioService webhook server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the webhook server and closes the response channel.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.done)

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Error("TwilioService webhook shutdown failed", "error", err)
		}
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// Responses returns the channel of inbound user messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// handleInbound parses Twilio's form-encoded webhook payload and forwards
// the message as a response event.
func (s *TwilioService) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService inbound parse failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	profile := r.PostFormValue("ProfileName")
	if from == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	if profile != "" {
		s.mu.Lock()
		s.profiles[from] = profile
		s.mu.Unlock()
	}

	resp := models.Response{From: from, Body: body, Time: time.Now().Unix()}
	select {
	case s.responses <- resp:
		slog.Debug("TwilioService inbound message queued", "from", from)
	case <-s.done:
		slog.Debug("TwilioService inbound message dropped after stop", "from", from)
	}
	w.WriteHeader(http.StatusOK)
}

// handleMedia serves a previously staged outgoing image to Twilio.
func (s *TwilioService) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.mediaDir, name))
}
