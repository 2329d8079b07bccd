package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pyama86/slaffic-ticket/domain/model"
)

// nextDigestAt は now 以降で最初の hour 時を返す
func nextDigestAt(now time.Time, hour int, loc *time.Location) time.Time {
	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
	// すでに過ぎていたら翌日
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartDigestMonitor は毎日 DIGEST_HOUR に未完了チケットの一覧をダッシュボードに流す
func (h *Handler) StartDigestMonitor(ctx context.Context) {
	if h.cfg.DigestHour < 0 || h.cfg.DashboardChannelID == "" {
		slog.Info("Daily digest is disabled")
		return
	}

	go func() {
		for {
			next := nextDigestAt(h.now(), h.cfg.DigestHour, h.cfg.Location)
			sleepDuration := time.Until(next)
			slog.Info("Next digest", slog.Any("next", next), slog.Any("sleep", sleepDuration))

			select {
			case <-ctx.Done():
				return
			case <-time.After(sleepDuration):
			}

			if err := h.postDigest(ctx); err != nil {
				slog.Error("Failed to post digest", slog.Any("err", err))
			}
		}
	}()
}

func (h *Handler) postDigest(ctx context.Context) error {
	tickets, err := h.engine.ListOpen(ctx, model.TicketFilter{})
	if err != nil {
		return fmt.Errorf("ListOpen failed: %w", err)
	}

	now := h.now().In(h.cfg.Location)
	text := h.renderer.Summary(fmt.Sprintf("📋 未完了チケット %s", now.Format("2006-01-02")), tickets)

	if h.summarizer != nil && len(tickets) > 0 {
		entries := make([]model.DigestEntry, 0, len(tickets))
		for _, t := range tickets {
			assignee := ""
			if t.AssigneeID != "" {
				assignee = h.userName(ctx, t.AssigneeID, "")
			}
			entries = append(entries, model.NewDigestEntry(t, assignee))
		}
		summary, err := h.summarizer.GenerateSummary(ctx, entries, now)
		if err != nil {
			// 要約がなくても一覧は流す
			slog.Error("GenerateSummary failed", slog.Any("err", err))
		} else {
			text += "\n\n*🤖 AIサマリ*\n" + summary
		}
	}

	report := h.broadcaster.Broadcast(ctx, []string{h.cfg.DashboardChannelID}, "", text)
	slog.Info("Digest posted", slog.Int("tickets", len(tickets)), slog.Int("delivered", report.Delivered))
	return nil
}
