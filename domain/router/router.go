package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyama86/slaffic-ticket/domain/card"
	"github.com/pyama86/slaffic-ticket/domain/fanout"
	"github.com/pyama86/slaffic-ticket/domain/infra"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

// Messenger はチャット基盤への送信口
type Messenger interface {
	// カードを投稿してメッセージIDを返す
	Deliver(ctx context.Context, channelID string, c card.Card) (string, error)
	// 投稿済みのカードを書き換える
	Edit(ctx context.Context, channelID, messageID string, c card.Card) error
	Post(ctx context.Context, channelID, text string) error
	// 本人にだけ見えるメッセージを送る
	Notify(ctx context.Context, channelID, userID, text string) error
}

type Router struct {
	ds          infra.Datastore
	messenger   Messenger
	renderer    *card.Renderer
	broadcaster *fanout.Broadcaster
	dashboardID string
}

func New(ds infra.Datastore, messenger Messenger, renderer *card.Renderer, broadcaster *fanout.Broadcaster, dashboardID string) *Router {
	return &Router{
		ds:          ds,
		messenger:   messenger,
		renderer:    renderer,
		broadcaster: broadcaster,
		dashboardID: dashboardID,
	}
}

// Publish はカードを部署チャンネルに投稿し、投稿先を記録してから依頼者に知らせる。
// 投稿に失敗したら投稿先は記録せず、依頼者への確認も送らない
func (r *Router) Publish(ctx context.Context, t *model.Ticket, channelID string) (*model.Ticket, error) {
	messageID, err := r.messenger.Deliver(ctx, channelID, r.renderer.Render(*t))
	if err != nil {
		return nil, fmt.Errorf("%w: ticket=%s channel=%s: %w", model.ErrPublishFailure, t.ID, channelID, err)
	}

	updated, err := r.ds.UpdateTicket(ctx, t.ID, func(cur *model.Ticket) error {
		return cur.SetDestination(channelID, messageID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record destination: ticket=%s: %w", t.ID, err)
	}

	confirm := fmt.Sprintf("✅ チケット `%s` を受け付けました。<#%s> に送信しています。", updated.ID, channelID)
	if err := r.messenger.Notify(ctx, updated.SourceChannelID, updated.CreatedByID, confirm); err != nil {
		slog.Warn("failed to notify requester",
			slog.String("ticket", updated.ID),
			slog.String("user", updated.CreatedByID),
			slog.Any("err", err))
	}

	r.mirror(ctx, channelID, "🆕 *新しいチケット*\n"+r.renderer.StatusLine(*updated))
	return updated, nil
}

// Refresh は投稿済みのカードを現在の状態で描き直す
func (r *Router) Refresh(ctx context.Context, t *model.Ticket) error {
	if !t.HasDestination() {
		return fmt.Errorf("%w: ticket=%s has no destination", model.ErrRenderSync, t.ID)
	}
	if err := r.messenger.Edit(ctx, t.DestChannelID, t.DestMessageID, r.renderer.Render(*t)); err != nil {
		return fmt.Errorf("%w: ticket=%s: %w", model.ErrRenderSync, t.ID, err)
	}
	return nil
}

// MirrorStatus はステータス変更をダッシュボードに流す
func (r *Router) MirrorStatus(ctx context.Context, t *model.Ticket, actorID string) {
	text := fmt.Sprintf("🔁 <@%s> が更新しました\n%s", actorID, r.renderer.StatusLine(*t))
	r.mirror(ctx, t.DestChannelID, text)
}

func (r *Router) mirror(ctx context.Context, origin, text string) {
	if r.dashboardID == "" || r.broadcaster == nil {
		return
	}
	r.broadcaster.Broadcast(ctx, []string{r.dashboardID}, origin, text)
}
