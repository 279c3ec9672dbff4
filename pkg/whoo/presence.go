package whoo

import (
	"context"
	"net/http"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

// PresenceService toggles the online flag shown to friends.
//
// The service acknowledges Online with 200 and a body but Offline with 204
// and no body. Each method accepts only its own status.
type PresenceService struct {
	transport *transport.Transport
}

// Online marks the user as online.
func (s *PresenceService) Online(ctx context.Context) (Record, error) {
	const op = "online"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPatch,
		Path:   "/api/user/online",
		Expect: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// Offline marks the user as offline.
func (s *PresenceService) Offline(ctx context.Context) error {
	const op = "offline"
	if err := requireToken(s.transport, op); err != nil {
		return err
	}
	_, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPatch,
		Path:   "/api/user/offline",
		Expect: http.StatusNoContent,
	})
	return err
}
