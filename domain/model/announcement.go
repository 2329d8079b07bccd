package model

import "time"

type Announcement struct {
	ID         string    `gorm:"type:varchar(36);primary_key" json:"id"`
	SenderID   string    `gorm:"type:varchar(50)" json:"sender_id"`
	SenderName string    `gorm:"type:varchar(255)" json:"sender_name"`
	ChannelID  string    `gorm:"type:varchar(50)" json:"channel_id"`
	Message    string    `gorm:"type:text" json:"message"`
	Delivered  int       `json:"delivered"`
	SentAt     time.Time `json:"sent_at"`
}
