package telegram

// Update is one entry from getUpdates. Only the fields the pipeline reads
// are mapped.
type Update struct {
	UpdateID        int64                   `json:"update_id"`
	Message         *Message                `json:"message,omitempty"`
	MessageReaction *MessageReactionUpdated `json:"message_reaction,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// MessageReactionUpdated reports a reaction change on one message.
type MessageReactionUpdated struct {
	Chat        Chat           `json:"chat"`
	MessageID   int64          `json:"message_id"`
	User        *User          `json:"user,omitempty"`
	OldReaction []ReactionType `json:"old_reaction"`
	NewReaction []ReactionType `json:"new_reaction"`
}

type ReactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

// Feedback emojis the bot records. Everything else is ignored.
var ValidReactionEmojis = map[string]string{
	"❤":  "like",
	"❤️": "like",
	"💩": "dislike",
	"🤡": "spam",
}

// AddedEmojis returns the emojis present in the new reaction set but not
// the old one, filtered to the feedback vocabulary.
func (r *MessageReactionUpdated) AddedEmojis() []string {
	old := make(map[string]struct{}, len(r.OldReaction))
	for _, rt := range r.OldReaction {
		old[rt.Emoji] = struct{}{}
	}
	var added []string
	for _, rt := range r.NewReaction {
		if rt.Type != "emoji" {
			continue
		}
		if _, present := old[rt.Emoji]; present {
			continue
		}
		if _, valid := ValidReactionEmojis[rt.Emoji]; !valid {
			continue
		}
		added = append(added, rt.Emoji)
	}
	return added
}
