package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

var errBadUserID = errors.New("user id must be a number or string")

// UserID is whatever identity the caller claims. Clients send either a JSON
// number (Telegram ids) or a string; canonical integers are echoed back as
// numbers so responses match what was sent.
type UserID string

func (id UserID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errBadUserID
	}
	*id = UserID(n.String())
	return nil
}

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// UnmarshalJSON also accepts the older {id, username} shape.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          UserID `json:"id"`
		DisplayName string `json:"displayName"`
		Username    string `json:"username"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	u.DisplayName = raw.DisplayName
	if u.DisplayName == "" {
		u.DisplayName = raw.Username
	}
	return nil
}

// Anonymous stands in for callers that send no usable identity.
var Anonymous = User{ID: "0", DisplayName: "Anonymous"}

// OrAnonymous returns u, or Anonymous when u carries no id.
func OrAnonymous(u *User) User {
	if u == nil || u.ID == "" {
		return Anonymous
	}
	return *u
}
