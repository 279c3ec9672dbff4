package whoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

// UserService covers user lookup and friendships.
type UserService struct {
	transport *transport.Transport
}

// FindUser returns the first user whose display name matches. An empty or
// malformed result list is a *NotFoundError, not a failed call.
func (s *UserService) FindUser(ctx context.Context, displayName string) (Record, error) {
	const op = "find user"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodGet,
		Path:   "/api/friends/search",
		Query:  url.Values{"display_name": {displayName}},
	})
	if err != nil {
		return nil, err
	}
	body, err := response.Object()
	if err != nil {
		return nil, err
	}

	friends, ok := body["friends"].([]any)
	if !ok || len(friends) == 0 {
		return nil, &NotFoundError{Op: op, Query: displayName}
	}
	first, ok := friends[0].(map[string]any)
	if !ok {
		return nil, &NotFoundError{Op: op, Query: displayName}
	}
	return Record(first), nil
}

// GetUser returns a user's profile. Without includeFriends the "friends"
// and "next_page" fields are removed. With it, when the first response
// announces N further pages, pages 1..N are fetched in order and their
// friend lists concatenated into "friends"; "next_page" is then null. Any
// failed page fails the whole call.
func (s *UserService) GetUser(ctx context.Context, userID int64, includeFriends bool) (Record, error) {
	const op = "get user"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v2/users/%d", userID)
	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	body, err := response.Object()
	if err != nil {
		return nil, err
	}
	user := Record(body)

	if !includeFriends {
		delete(user, "friends")
		delete(user, "next_page")
		return user, nil
	}

	pages, err := pageCount(user["next_page"])
	if err != nil {
		return nil, response.Unexpected(err.Error())
	}
	if pages == 0 {
		return user, nil
	}

	friends := []any{}
	for page := 1; page <= pages; page++ {
		pageFriends, err := s.friendsPage(ctx, path+"/friends", page)
		if err != nil {
			return nil, err
		}
		friends = append(friends, pageFriends...)
	}

	user["friends"] = friends
	user["next_page"] = nil
	return user, nil
}

func (s *UserService) friendsPage(ctx context.Context, path string, page int) ([]any, error) {
	response, err := s.transport.Do(ctx, transport.Request{
		Op:     "get user friends",
		Method: http.MethodGet,
		Path:   path,
		Query:  url.Values{"page": {strconv.Itoa(page)}},
	})
	if err != nil {
		return nil, err
	}
	body, err := response.Object()
	if err != nil {
		return nil, err
	}
	friends, ok := body["friends"].([]any)
	if !ok {
		return nil, response.Unexpected(fmt.Sprintf("page %d has no friends list", page))
	}
	return friends, nil
}

// pageCount reads the next_page cursor; absent, null, false or non-positive
// values mean there are no further pages.
func pageCount(cursor any) (int, error) {
	switch value := cursor.(type) {
	case nil, bool:
		return 0, nil
	default:
		n, err := strconv.ParseInt(scalarText(value), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid next_page %v", value)
		}
		if n < 0 {
			return 0, nil
		}
		return int(n), nil
	}
}

// GetFriends returns the caller's friend list.
func (s *UserService) GetFriends(ctx context.Context) (Record, error) {
	return s.get(ctx, "get friends", "/api/friends")
}

// GetRequested returns pending friend requests.
func (s *UserService) GetRequested(ctx context.Context) (Record, error) {
	return s.get(ctx, "get requested", "/api/friends/requested")
}

// RequestFriend sends a friend request to userID.
func (s *UserService) RequestFriend(ctx context.Context, userID int64) (Record, error) {
	const op = "request friend"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPost,
		Path:   "/api/friends",
		Form:   formOf("user_id", strconv.FormatInt(userID, 10)),
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// DeleteRequested withdraws a friend request sent to userID.
func (s *UserService) DeleteRequested(ctx context.Context, userID int64) (Record, error) {
	const op = "delete requested"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/api/friendships/%d/retire", userID),
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

func (s *UserService) get(ctx context.Context, op, path string) (Record, error) {
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// formOf builds form values from alternating keys and values.
func formOf(pairs ...string) url.Values {
	form := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		form.Set(pairs[i], pairs[i+1])
	}
	return form
}
