package platform

// User is a platform account as returned by the user info endpoint.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// DisplayName returns the best available handle for a user.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

// Conversation is one thread from the conversations listing. It is only used
// within a single poll or discovery cycle and never persisted.
type Conversation struct {
	ID           string          `json:"id"`
	Participants ParticipantList `json:"participants"`
	UpdatedTime  string          `json:"updated_time,omitempty"`
}

// ParticipantList wraps the data envelope the API puts around participants.
type ParticipantList struct {
	Data []User `json:"data"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants.Data {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ConversationMessage is one message fetched from a conversation thread.
type ConversationMessage struct {
	ID          string `json:"id"`
	From        User   `json:"from"`
	Message     string `json:"message,omitempty"`
	CreatedTime string `json:"created_time,omitempty"`
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}
