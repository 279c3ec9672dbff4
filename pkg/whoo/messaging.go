package whoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

// MessageService sends chat messages and stamps.
type MessageService struct {
	transport *transport.Transport
}

// SendMessage posts text to a chat room. Every call carries a fresh UUID
// that the service uses to drop duplicate deliveries of the same message.
func (s *MessageService) SendMessage(ctx context.Context, roomID string, text string) (Record, error) {
	const op = "send message"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	if roomID == "" {
		return nil, &ValidationError{Op: op, Reason: "room id is required"}
	}

	form := url.Values{}
	form.Set("message[uid]", uuid.NewString())
	form.Set("message[body]", text)

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/rooms/%s/messages", url.PathEscape(roomID)),
		Form:   form,
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// SendStamp sends quantity copies of a stamp to userID.
func (s *MessageService) SendStamp(ctx context.Context, userID int64, stampID int, quantity int) error {
	const op = "send stamp"
	if err := requireToken(s.transport, op); err != nil {
		return err
	}
	if quantity < 1 {
		return &ValidationError{Op: op, Reason: fmt.Sprintf("quantity %d must be at least 1", quantity)}
	}

	form := url.Values{}
	form.Set("message[user_id]", strconv.FormatInt(userID, 10))
	form.Set("message[stamp_id]", strconv.Itoa(stampID))
	form.Set("message[stamp_count]", strconv.Itoa(quantity))

	_, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPost,
		Path:   "/api/stamp_messages",
		Form:   form,
		Expect: http.StatusNoContent,
	})
	return err
}
