package chat

import "time"

type Character struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	UserID    string    `gorm:"size:64;index;not null" json:"-"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Thumbnail string    `gorm:"size:255" json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Character) TableName() string { return "characters" }

type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"size:64;not null;index:idx_msg_user_character,priority:1" json:"-"`
	CharacterID string    `gorm:"size:26;not null;index:idx_msg_user_character,priority:2" json:"character_id"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
