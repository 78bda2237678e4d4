package chatwork

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Room is a Chatwork room as returned by GET /rooms
type Room struct {
	RoomID      string `json:"roomId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Account is the sender of a message
type Account struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// Message is a Chatwork message as returned by GET /rooms/{id}/messages
type Message struct {
	MessageID string    `json:"message_id"`
	Account   Account   `json:"account"`
	Body      string    `json:"body"`
	SendTime  time.Time `json:"send_time"`
}

// flexID accepts both JSON numbers and strings. Chatwork returns room and
// account ids as numbers and message ids as strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireRoom struct {
	RoomID      flexID `json:"room_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (w wireRoom) toRoom() Room {
	return Room{
		RoomID:      string(w.RoomID),
		Name:        w.Name,
		Description: w.Description,
		Type:        w.Type,
	}
}

type wireAccount struct {
	AccountID flexID `json:"account_id"`
	Name      string `json:"name"`
}

type wireMessage struct {
	MessageID flexID      `json:"message_id"`
	Account   wireAccount `json:"account"`
	Body      string      `json:"body"`
	SendTime  int64       `json:"send_time"`
}

func (w wireMessage) toMessage() Message {
	msg := Message{
		MessageID: strings.TrimSpace(string(w.MessageID)),
		Account: Account{
			AccountID: string(w.Account.AccountID),
			Name:      w.Account.Name,
		},
		Body: w.Body,
	}
	if w.SendTime > 0 {
		msg.SendTime = time.Unix(w.SendTime, 0).UTC()
	}
	return msg
}
