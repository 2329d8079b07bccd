package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/card"
	"github.com/pyama86/slaffic-ticket/domain/directory"
	"github.com/pyama86/slaffic-ticket/domain/fanout"
	"github.com/pyama86/slaffic-ticket/domain/infra"
	"github.com/pyama86/slaffic-ticket/domain/lifecycle"
	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Summarizer は日次ダイジェストの要約を作る
type Summarizer interface {
	GenerateSummary(ctx context.Context, entries []model.DigestEntry, now time.Time) (string, error)
}

type Deps struct {
	Client      infra.SlackAPI
	Datastore   infra.Datastore
	Engine      *lifecycle.Engine
	Directory   *directory.Directory
	Renderer    *card.Renderer
	Broadcaster *fanout.Broadcaster
	// nil なら要約しない
	Summarizer Summarizer
}

type Handler struct {
	cfg           *config.Config
	client        infra.SlackAPI
	ds            infra.Datastore
	engine        *lifecycle.Engine
	dir           *directory.Directory
	renderer      *card.Renderer
	broadcaster   *fanout.Broadcaster
	summarizer    Summarizer
	userInfoCache *ttlcache.Cache[string, *slack.User]
	channelCache  *ttlcache.Cache[string, *slack.Channel]
	botID         string
	now           func() time.Time
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	h := &Handler{
		cfg:           cfg,
		client:        deps.Client,
		ds:            deps.Datastore,
		engine:        deps.Engine,
		dir:           deps.Directory,
		renderer:      deps.Renderer,
		broadcaster:   deps.Broadcaster,
		summarizer:    deps.Summarizer,
		userInfoCache: ttlcache.New(ttlcache.WithTTL[string, *slack.User](24 * time.Hour)),
		channelCache:  ttlcache.New(ttlcache.WithTTL[string, *slack.Channel](time.Hour)),
		now:           time.Now,
	}
	go h.userInfoCache.Start()
	go h.channelCache.Start()
	return h
}

// Handle は Socket Mode で接続し、ctx が終わるまでイベントを1件ずつ処理する
func (h *Handler) Handle(ctx context.Context) error {
	webApi := slack.New(
		h.cfg.BotToken,
		slack.OptionAppLevelToken(h.cfg.AppToken),
	)
	socketMode := socketmode.New(
		webApi,
	)
	authTest, err := webApi.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("SLACK_BOT_TOKEN is invalid: %w", err)
	}
	h.botID = authTest.UserID

	go func() {
		for envelope := range socketMode.Events {
			switch envelope.Type {
			case socketmode.EventTypeEventsAPI:
				socketMode.Ack(*envelope.Request)
				eventPayload, ok := envelope.Data.(slackevents.EventsAPIEvent)
				if !ok {
					slog.Error("Failed to cast to EventsAPIEvent")
					continue
				}
				h.handleCallBack(ctx, &eventPayload)
			case socketmode.EventTypeSlashCommand:
				socketMode.Ack(*envelope.Request)
				cmd, ok := envelope.Data.(slack.SlashCommand)
				if !ok {
					slog.Error("Failed to cast to SlashCommand")
					continue
				}
				h.handleSlashCommand(ctx, cmd)
			case socketmode.EventTypeInteractive:
				socketMode.Ack(*envelope.Request)
				callback, ok := envelope.Data.(slack.InteractionCallback)
				if !ok {
					slog.Error("Failed to cast to InteractionCallback")
					continue
				}
				h.handleInteractions(ctx, &callback)
			default:
				socketMode.Debugf("Skipped: %v", envelope.Type)
			}
		}
	}()

	return socketMode.RunContext(ctx)
}

func getUserPreferredName(user *slack.User) string {
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	return user.Name
}

func (h *Handler) getUserInfo(ctx context.Context, userID string) (*slack.User, error) {
	cacheKey := "user_" + userID
	if user := h.userInfoCache.Get(cacheKey); user != nil {
		return user.Value(), nil
	}
	user, err := h.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	h.userInfoCache.Set(cacheKey, user, ttlcache.DefaultTTL)
	return user, nil
}

func (h *Handler) getChannelInfo(ctx context.Context, channelID string) (*slack.Channel, error) {
	cacheKey := "channel_" + channelID
	if ch := h.channelCache.Get(cacheKey); ch != nil {
		return ch.Value(), nil
	}
	ch, err := h.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	h.channelCache.Set(cacheKey, ch, ttlcache.DefaultTTL)
	return ch, nil
}

// userName はメンションを飛ばさずに表示するための名前。取れなければ fallback
func (h *Handler) userName(ctx context.Context, userID, fallback string) string {
	user, err := h.getUserInfo(ctx, userID)
	if err != nil {
		slog.Warn("GetUserInfo failed", slog.String("user", userID), slog.Any("err", err))
		if fallback != "" {
			return fallback
		}
		return userID
	}
	return getUserPreferredName(user)
}

// channelTitle は依頼元の表示名。DM は Private とする
func (h *Handler) channelTitle(ctx context.Context, channelID, fallback string) string {
	if strings.HasPrefix(channelID, "D") {
		return "Private"
	}
	ch, err := h.getChannelInfo(ctx, channelID)
	if err != nil {
		slog.Warn("GetConversationInfo failed", slog.String("channel", channelID), slog.Any("err", err))
		if fallback != "" {
			return "#" + fallback
		}
		return channelID
	}
	if ch.IsIM {
		return "Private"
	}
	return "#" + ch.Name
}

func channelType(ch *slack.Channel) string {
	switch {
	case ch.IsIM:
		return "im"
	case ch.IsMpIM:
		return "mpim"
	case ch.IsPrivate:
		return "private"
	}
	return "public"
}

func (h *Handler) getBotUserID() string {
	if h.botID == "" {
		authResp, err := h.client.AuthTest()
		if err != nil {
			slog.Error("Failed to get bot user ID", slog.Any("err", err))
			return ""
		}
		slog.Info("Bot user ID", slog.Any("id", authResp.UserID))
		h.botID = authResp.UserID
	}
	return h.botID
}

func (h *Handler) postEphemeral(ctx context.Context, channelID, userID, text string) {
	if _, err := h.client.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		slog.Error("Failed to post ephemeral message",
			slog.String("channel", channelID),
			slog.String("user", userID),
			slog.Any("err", err))
	}
}

func (h *Handler) postEphemeralBlocks(ctx context.Context, channelID, userID, fallback string, blocks ...slack.Block) {
	if _, err := h.client.PostEphemeralContext(ctx, channelID, userID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	); err != nil {
		slog.Error("Failed to post ephemeral message",
			slog.String("channel", channelID),
			slog.String("user", userID),
			slog.Any("err", err))
	}
}

// errorMessage はイベント処理のエラーを利用者向けの文言にする
func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrUnsupportedDepartment):
		return ":warning: その部署には対応していません。"
	case errors.Is(err, model.ErrTicketNotFound):
		return ":mag: チケットが見つかりません。IDを確認してください。"
	case errors.Is(err, model.ErrUnauthorized):
		return ":no_entry: このチケットを操作する権限がありません。担当マネージャか管理者のみ操作できます。"
	case errors.Is(err, model.ErrInvalidTransition):
		return ":warning: 現在のステータスではその操作はできません。"
	case errors.Is(err, model.ErrNoDraft):
		return ":memo: 依頼内容が見つかりません。`/ticket` からやり直してください。"
	case errors.Is(err, model.ErrPublishFailure):
		return ":x: 部署チャンネルへの送信に失敗しました。時間をおいて再度お試しください。"
	case errors.Is(err, model.ErrRenderSync):
		return ":warning: ステータスは保存されましたが、カードの表示を更新できませんでした。"
	}
	return ":x: 処理に失敗しました。"
}

// replyError はエラーをログに出して操作した本人にだけ知らせる
func (h *Handler) replyError(ctx context.Context, channelID, userID string, err error) {
	attrs := []any{
		slog.String("channel", channelID),
		slog.String("user", userID),
		slog.Any("err", err),
	}
	switch {
	case errors.Is(err, model.ErrUnsupportedDepartment),
		errors.Is(err, model.ErrTicketNotFound),
		errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrNoDraft):
		slog.Info("request rejected", attrs...)
	default:
		slog.Error("request failed", attrs...)
	}
	h.postEphemeral(ctx, channelID, userID, errorMessage(err))
}

func (h *Handler) handleCallBack(ctx context.Context, event *slackevents.EventsAPIEvent) {
	switch event.Type {
	case slackevents.CallbackEvent:
		innerEvent := event.InnerEvent
		switch ev := innerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			h.handleMessage(ctx, ev)
		}
	default:
		slog.Warn("Unsupported EventsAPIEvent type", slog.Any("type", event.Type))
	}
}

func (h *Handler) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.User == "" || ev.User == h.getBotUserID() {
		return
	}

	switch ev.SubType {
	case "":
		if h.engine.CaptureDraft(ev.User, ev.Channel, ev.Text) {
			h.promptDepartment(ctx, ev.Channel, ev.User)
		}
	case "file_share":
		// カードのスレッドに投稿されたファイルだけを扱う
		if ev.ThreadTimeStamp == "" || ev.Message == nil {
			return
		}
		h.handleAttachments(ctx, ev.User, ev.Channel, ev.ThreadTimeStamp, ev.Message.Files)
	}
}

func (h *Handler) handleAttachments(ctx context.Context, userID, channelID, threadTS string, files []slack.File) {
	for _, f := range files {
		t, err := h.engine.Attach(ctx, userID, channelID, threadTS, lifecycle.Attachment{
			Name: f.Name,
			URL:  f.URLPrivateDownload,
		})
		if errors.Is(err, model.ErrTicketNotFound) {
			return
		}
		if err != nil && !errors.Is(err, model.ErrRenderSync) {
			h.replyError(ctx, channelID, userID, err)
			continue
		}
		if err != nil {
			slog.Warn("attachment saved but card not refreshed", slog.String("ticket", t.ID), slog.Any("err", err))
		}
		h.postEphemeral(ctx, channelID, userID, fmt.Sprintf(":paperclip: `%s` に %s を添付しました。", t.ID, t.AttachmentName))
	}
}

// promptDepartment は部署選択のボタンを依頼者にだけ表示する
func (h *Handler) promptDepartment(ctx context.Context, channelID, userID string) {
	var buttons []slack.BlockElement
	for _, dept := range h.dir.Departments() {
		p := card.DepartmentPayload(dept)
		buttons = append(buttons, slack.NewButtonBlockElement(
			fmt.Sprintf("%s_%s", p.Kind, dept),
			p.Encode(),
			slack.NewTextBlockObject("plain_text", h.dir.Label(dept), true, false),
		))
	}

	h.postEphemeralBlocks(ctx, channelID, userID, "依頼先の部署を選んでください",
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "*📁 依頼先の部署を選んでください*", false, false),
			nil, nil,
		),
		slack.NewActionBlock("department_actions", buttons...),
	)
}

func (h *Handler) handleInteractions(ctx context.Context, callback *slack.InteractionCallback) {
	if callback.Type != slack.InteractionTypeBlockActions {
		return
	}
	if len(callback.ActionCallback.BlockActions) < 1 {
		return
	}
	action := callback.ActionCallback.BlockActions[0]
	userID := callback.User.ID
	channelID := callback.Channel.ID

	payload, err := card.ParsePayload(action.Value)
	if err != nil {
		slog.Warn("ignored malformed payload", slog.String("action_id", action.ActionID), slog.Any("err", err))
		return
	}

	switch payload.Kind {
	case card.KindDepartment:
		h.submitDraft(ctx, channelID, userID, model.Department(payload.Target))
	case card.KindTicket:
		t, err := h.engine.Apply(ctx, userID, payload.Target, payload.Action)
		if err != nil {
			h.replyError(ctx, channelID, userID, err)
			if !errors.Is(err, model.ErrRenderSync) {
				return
			}
		}
		h.postEphemeral(ctx, channelID, userID,
			fmt.Sprintf(":white_check_mark: `%s` を更新しました: %s", t.ID, card.StatusLabel(t.Status)))
	}
}

func (h *Handler) submitDraft(ctx context.Context, channelID, userID string, dept model.Department) {
	t, err := h.engine.Submit(ctx, userID, dept)
	if err == nil {
		return
	}
	if t != nil {
		// 送信に失敗してもチケットは残っているのでIDを伝える
		h.replyError(ctx, channelID, userID, fmt.Errorf("ticket %s: %w", t.ID, err))
		h.postEphemeral(ctx, channelID, userID, fmt.Sprintf("チケット `%s` は保存されています。", t.ID))
		return
	}
	h.replyError(ctx, channelID, userID, err)
}
