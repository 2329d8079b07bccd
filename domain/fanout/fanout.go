package fanout

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Sender はチャンネルにテキストを投稿する
type Sender interface {
	Post(ctx context.Context, channelID, text string) error
}

// Report は配信結果。失敗はログに出すだけで呼び出し元には返さない
type Report struct {
	Delivered int
	Failed    []string
}

type Broadcaster struct {
	sender Sender
	limit  int
}

func NewBroadcaster(sender Sender, limit int) *Broadcaster {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	return &Broadcaster{sender: sender, limit: limit}
}

// Broadcast は recipients に並行して配信する。空、重複、exclude は送らない
func (b *Broadcaster) Broadcast(ctx context.Context, recipients []string, exclude, text string) Report {
	var (
		mu     sync.Mutex
		report Report
		seen   = map[string]bool{}
	)

	g := new(errgroup.Group)
	g.SetLimit(b.limit)
	for _, recipient := range recipients {
		if recipient == "" || recipient == exclude || seen[recipient] {
			continue
		}
		seen[recipient] = true
		g.Go(func() error {
			err := b.sender.Post(ctx, recipient, text)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("broadcast delivery failed", slog.String("recipient", recipient), slog.Any("err", err))
				report.Failed = append(report.Failed, recipient)
				return nil
			}
			report.Delivered++
			return nil
		})
	}
	// 各配信は失敗しても nil を返すので Wait はエラーにならない
	_ = g.Wait()
	return report
}
