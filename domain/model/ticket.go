package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusEscalated  Status = "ESCALATED"
	StatusClosed     Status = "CLOSED"
)

// Terminal はボタン表示上の終端状態かどうか
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusClosed
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusEscalated, StatusClosed:
		return true
	}
	return false
}

// Department は部署コード。チケットIDのプレフィックスにも使う
type Department string

func (d Department) Prefix() string {
	return string(d)
}

type Ticket struct {
	ID                 string     `gorm:"type:varchar(64);primary_key" json:"id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CreatedByID        string     `gorm:"type:varchar(50);index" json:"created_by_id"`
	CreatedByName      string     `gorm:"type:varchar(255)" json:"created_by_name"`
	SourceChannelID    string     `gorm:"type:varchar(50)" json:"source_channel_id"`
	SourceChannelTitle string     `gorm:"type:varchar(255)" json:"source_channel_title"`
	Department         Department `gorm:"type:varchar(32);index" json:"department"`
	Body               string     `gorm:"type:text" json:"body"`
	Status             Status     `gorm:"type:varchar(20);index" json:"status"`
	ManagerID          string     `gorm:"type:varchar(50)" json:"manager_id"`
	DestChannelID      string     `gorm:"type:varchar(50);index:idx_ticket_destination" json:"dest_channel_id,omitempty"`
	DestMessageID      string     `gorm:"type:varchar(20);index:idx_ticket_destination" json:"dest_message_id,omitempty"`
	AssigneeID         string     `gorm:"type:varchar(50)" json:"assignee_id,omitempty"`
	AttachmentName     string     `gorm:"type:varchar(255)" json:"attachment_name,omitempty"`
	AttachmentPath     string     `gorm:"type:text" json:"attachment_path,omitempty"`
	Version            int        `json:"version"`
}

// HasDestination はカードの投稿に成功しているかどうか
func (t *Ticket) HasDestination() bool {
	return t.DestChannelID != "" && t.DestMessageID != ""
}

// SetDestination は初回投稿の結果を記録する。一度しか設定できない
func (t *Ticket) SetDestination(channelID, messageID string) error {
	if t.HasDestination() {
		return fmt.Errorf("destination already set: ticket=%s", t.ID)
	}
	t.DestChannelID = channelID
	t.DestMessageID = messageID
	return nil
}

func (t *Ticket) IsOpen() bool {
	return !t.Status.Terminal()
}

// TicketFilter は未完了チケット一覧の絞り込み条件
type TicketFilter struct {
	Department  Department
	CreatedByID string
}

func (f TicketFilter) Match(t *Ticket) bool {
	if !t.IsOpen() {
		return false
	}
	if f.Department != "" && t.Department != f.Department {
		return false
	}
	if f.CreatedByID != "" && t.CreatedByID != f.CreatedByID {
		return false
	}
	return true
}

// DailyCounter は日付とプレフィックスごとの採番カウンタ
type DailyCounter struct {
	Day    string `gorm:"type:varchar(8);primary_key"`
	Prefix string `gorm:"type:varchar(32);primary_key"`
	Value  int
}

// FormatTicketID は IT-20240601-0001 形式のIDを組み立てる
func FormatTicketID(prefix, day string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day, seq)
}

// TicketDay は採番に使う日付文字列を返す
func TicketDay(at time.Time) string {
	return at.Format("20060102")
}
