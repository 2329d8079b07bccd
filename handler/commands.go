package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pyama86/slaffic-ticket/domain/lifecycle"
	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/slack-go/slack"
)

const (
	cmdTicket   = "ticket"
	cmdTask     = "task"
	cmdStatus   = "status"
	cmdClose    = "close"
	cmdAnnounce = "announce"
	cmdWhoami   = "whoami"
	cmdID       = "id"
)

func (h *Handler) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	switch strings.TrimPrefix(cmd.Command, "/") {
	case cmdTicket, cmdTask:
		h.startDraft(ctx, cmd, text)
	case cmdStatus:
		h.showStatus(ctx, cmd, text)
	case cmdClose:
		h.closeTicket(ctx, cmd, text)
	case cmdAnnounce:
		h.announce(ctx, cmd, text)
	case cmdWhoami, cmdID:
		h.whoami(ctx, cmd)
	default:
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("不明なコマンドです: %s", cmd.Command))
	}
}

// startDraft は依頼の受付を始める。本文が一緒に渡されていればすぐに部署を選ばせる
func (h *Handler) startDraft(ctx context.Context, cmd slack.SlashCommand, text string) {
	if text == "cancel" {
		if h.engine.CancelDraft(cmd.UserID) {
			h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, ":wastebasket: 依頼の下書きを破棄しました。")
		} else {
			h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "破棄する下書きはありません。")
		}
		return
	}

	h.engine.BeginDraft(lifecycle.Requester{
		UserID:       cmd.UserID,
		UserName:     h.userName(ctx, cmd.UserID, cmd.UserName),
		ChannelID:    cmd.ChannelID,
		ChannelTitle: h.channelTitle(ctx, cmd.ChannelID, cmd.ChannelName),
	})

	if text != "" && h.engine.CaptureDraft(cmd.UserID, cmd.ChannelID, text) {
		h.promptDepartment(ctx, cmd.ChannelID, cmd.UserID)
		return
	}
	h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID,
		fmt.Sprintf(":memo: 依頼内容をこのチャンネルに投稿してください。(%s 以内)", h.cfg.DraftTTL))
}

func (h *Handler) showStatus(ctx context.Context, cmd slack.SlashCommand, id string) {
	if id != "" {
		t, err := h.engine.Status(ctx, id)
		if err != nil {
			h.replyError(ctx, cmd.ChannelID, cmd.UserID, err)
			return
		}
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, h.renderer.Render(*t).Text)
		return
	}

	// ダッシュボードでは全件、それ以外では自分の依頼だけ
	filter := model.TicketFilter{CreatedByID: cmd.UserID}
	title := "📋 あなたの未完了チケット"
	if h.cfg.DashboardChannelID != "" && cmd.ChannelID == h.cfg.DashboardChannelID {
		filter = model.TicketFilter{}
		title = "📋 未完了チケット"
	}
	tickets, err := h.engine.ListOpen(ctx, filter)
	if err != nil {
		h.replyError(ctx, cmd.ChannelID, cmd.UserID, err)
		return
	}
	h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, h.renderer.Summary(title, tickets))
}

func (h *Handler) closeTicket(ctx context.Context, cmd slack.SlashCommand, id string) {
	if id == "" {
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "使い方: `/close <チケットID>`")
		return
	}
	t, err := h.engine.Transition(ctx, cmd.UserID, id, model.ActionClose)
	if err != nil {
		h.replyError(ctx, cmd.ChannelID, cmd.UserID, err)
		// カード更新の失敗だけならクローズ自体は保存されている
		if !errors.Is(err, model.ErrRenderSync) {
			return
		}
	}
	h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf(":lock: `%s` をクローズしました。", t.ID))
}

// announce は指定チャンネルからのお知らせを各チャンネルに配信する
func (h *Handler) announce(ctx context.Context, cmd slack.SlashCommand, text string) {
	if !slices.Contains(h.cfg.AnnounceChannelIDs, cmd.ChannelID) {
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, ":no_entry: このチャンネルからはアナウンスできません。")
		return
	}
	if text == "" {
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "使い方: `/announce <本文>`")
		return
	}

	sender := h.userName(ctx, cmd.UserID, cmd.UserName)
	message := fmt.Sprintf(":mega: *お知らせ* (%s)\n%s", sender, text)
	report := h.broadcaster.Broadcast(ctx, h.cfg.AnnounceRecipientIDs, cmd.ChannelID, message)

	a := &model.Announcement{
		ID:         uuid.NewString(),
		SenderID:   cmd.UserID,
		SenderName: sender,
		ChannelID:  cmd.ChannelID,
		Message:    text,
		Delivered:  report.Delivered,
		SentAt:     h.now(),
	}
	if err := h.ds.SaveAnnouncement(ctx, a); err != nil {
		slog.Error("Failed to save announcement", slog.String("id", a.ID), slog.Any("err", err))
	}
	slog.Info("announcement sent",
		slog.String("id", a.ID),
		slog.String("user", cmd.UserID),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", len(report.Failed)))

	reply := fmt.Sprintf(":mega: %d件のチャンネルに送信しました。", report.Delivered)
	if len(report.Failed) > 0 {
		reply += fmt.Sprintf(" (%d件失敗)", len(report.Failed))
	}
	h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, reply)
}

func (h *Handler) whoami(ctx context.Context, cmd slack.SlashCommand) {
	kind := "unknown"
	if strings.HasPrefix(cmd.ChannelID, "D") {
		kind = "im"
	} else if ch, err := h.getChannelInfo(ctx, cmd.ChannelID); err == nil {
		kind = channelType(ch)
	} else {
		slog.Warn("GetConversationInfo failed", slog.String("channel", cmd.ChannelID), slog.Any("err", err))
	}

	lines := []string{
		fmt.Sprintf("*👤 ユーザーID:* `%s`", cmd.UserID),
		fmt.Sprintf("*💬 チャンネルID:* `%s`", cmd.ChannelID),
		fmt.Sprintf("*📂 チャンネル種別:* %s", kind),
	}
	if h.dir.IsAdmin(cmd.UserID) {
		lines = append(lines, "*🛡 権限:* 管理者")
	}
	h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, strings.Join(lines, "\n"))
}
