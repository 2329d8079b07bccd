package model

import (
	"fmt"
	"time"
)

// DigestEntry は日次ダイジェストのAI要約に渡す1件分の情報
type DigestEntry struct {
	TicketID   string    `json:"ticket_id"`
	CreatedAt  time.Time `json:"created_at"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	Assignee   string    `json:"assignee_name"`
	Body       string    `json:"body"`
}

func (e DigestEntry) String() string {
	return fmt.Sprintf("id:%s time:%s dept:%s status:%s assignee:%s content:%s",
		e.TicketID, e.CreatedAt.Format(time.RFC3339), e.Department, e.Status, e.Assignee, e.Body)
}

func NewDigestEntry(t Ticket, assigneeName string) DigestEntry {
	return DigestEntry{
		TicketID:   t.ID,
		CreatedAt:  t.CreatedAt,
		Department: string(t.Department),
		Status:     string(t.Status),
		Assignee:   assigneeName,
		Body:       t.Body,
	}
}
