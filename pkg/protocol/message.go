package protocol

import (
	"fmt"
	"strings"
)

// Type identifies what a message means to its receiver.
type Type string

const (
	TypeUserName    Type = "USER_NAME"    // client: claim a name; server: roster snapshot
	TypeWelcomeUser Type = "WELCOME_USER" // server: a user joined
	TypePartingUser Type = "PARTING_USER" // server: a user left
	TypeUserText    Type = "USER_TEXT"    // chat text, relayed verbatim
	TypeErrorName   Type = "ERROR_NAME"   // server: requested name is unavailable
)

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	switch t {
	case TypeUserName, TypeWelcomeUser, TypePartingUser, TypeUserText, TypeErrorName:
		return true
	default:
		return false
	}
}

func (t Type) String() string { return string(t) }

// UnmarshalText rejects unknown type names.
func (t *Type) UnmarshalText(b []byte) error {
	v := Type(b)
	if !v.Valid() {
		return fmt.Errorf("unknown message type %q", string(b))
	}
	*t = v
	return nil
}

// Message is the single record exchanged in both directions.
type Message struct {
	Type     Type   `json:"type"`
	UserName string `json:"userName"`
	Text     string `json:"text"`
}

// NewMessage builds a message whose text duplicates the user name.
func NewMessage(t Type, userName string) *Message {
	return &Message{Type: t, UserName: userName, Text: userName}
}

const bannerRule = "--------------------------------------------------" // 50 dashes

// ServiceBanner decorates a server announcement the way clients display it.
func ServiceBanner(text string) string {
	return bannerRule + "\n" + text + "\n" + bannerRule + "\n"
}

// NameTakenText is the ERROR_NAME explanation sent back to the requester.
const NameTakenText = "User with this name is already registered in the chat"

// Welcome announces that name joined the chat.
func Welcome(name string) *Message {
	return &Message{
		Type:     TypeWelcomeUser,
		UserName: name,
		Text:     ServiceBanner("Welcome: '" + name + "' has joined the chat!"),
	}
}

// Parting announces that name left the chat.
func Parting(name string) *Message {
	return &Message{
		Type:     TypePartingUser,
		UserName: name,
		Text:     ServiceBanner("Goodbye: '" + name + "' has parted from the chat!"),
	}
}

// NameTaken rejects a registration attempt for name.
func NameTaken(name string) *Message {
	return &Message{Type: TypeErrorName, UserName: name, Text: NameTakenText}
}

// NameInvalidText explains why a name that cannot appear in a roster was refused.
const NameInvalidText = "User name must not be empty or contain '" + RosterSeparator + "'"

// NameInvalid rejects a registration attempt for a name that cannot be registered.
func NameInvalid(name string) *Message {
	return &Message{Type: TypeErrorName, UserName: name, Text: NameInvalidText}
}

// Roster builds the USER_NAME snapshot frame for the given names.
func Roster(names []string) *Message {
	return NewMessage(TypeUserName, strings.Join(names, RosterSeparator))
}

// Text builds a chat message from userName.
func Text(userName, text string) *Message {
	return &Message{Type: TypeUserText, UserName: userName, Text: text}
}
