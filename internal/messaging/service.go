// Package messaging defines the transport abstraction used to exchange
// messages with booking users, with Twilio WhatsApp and console
// implementations.
package messaging

import (
	"context"
	"errors"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// DefaultChannelBufferSize is the buffer size for response channels.
const DefaultChannelBufferSize = 64

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// Service defines a pluggable message delivery abstraction.
// It supports sending text and image messages and provides a channel of
// incoming user responses.
type Service interface {
	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendImage sends an image with a caption to a recipient.
	SendImage(ctx context.Context, to string, caption string, image []byte) error

	// Profile returns the known profile for a user, or (nil, nil) when the
	// transport has no profile information for them.
	Profile(ctx context.Context, userID string) (*models.UserProfile, error)

	// Start begins any background processing (e.g. the inbound webhook).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user responses.
	Responses() <-chan models.Response
}
