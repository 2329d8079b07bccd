package model

import "time"

// Draft は /ticket 実行後、部署選択までの一時的な依頼内容
type Draft struct {
	UserID       string
	UserName     string
	ChannelID    string
	ChannelTitle string
	Body         string
	Awaiting     bool
	StartedAt    time.Time
}

// Ready は部署を選べる状態かどうか
func (d *Draft) Ready() bool {
	return d != nil && !d.Awaiting && d.Body != ""
}
