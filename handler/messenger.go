package handler

import (
	"context"
	"fmt"
	"io"

	"github.com/pyama86/slaffic-ticket/domain/card"
	"github.com/pyama86/slaffic-ticket/domain/infra"
	"github.com/slack-go/slack"
)

// Slack のセクションブロックのテキスト上限
const maxSectionText = 3000

// Messenger は Slack API 上でカードの投稿と更新、通知、添付の取得を行う
type Messenger struct {
	client infra.SlackAPI
}

func NewMessenger(client infra.SlackAPI) *Messenger {
	return &Messenger{client: client}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// cardBlocks はカードをセクションとボタンのブロックにする。本文が長ければ末尾を切る
func cardBlocks(c card.Card) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", truncate(c.Text, maxSectionText), false, false),
			nil, nil,
		),
	}
	if len(c.Actions) == 0 {
		return blocks
	}

	buttons := make([]slack.BlockElement, 0, len(c.Actions))
	for _, a := range c.Actions {
		button := slack.NewButtonBlockElement(
			fmt.Sprintf("%s_%s", a.Payload.Kind, a.Payload.Action),
			a.Payload.Encode(),
			slack.NewTextBlockObject("plain_text", a.Label, true, false),
		)
		switch a.Style {
		case card.StylePrimary:
			button = button.WithStyle(slack.StylePrimary)
		case card.StyleDanger:
			button = button.WithStyle(slack.StyleDanger)
		}
		buttons = append(buttons, button)
	}
	return append(blocks, slack.NewActionBlock("ticket_actions", buttons...))
}

func (m *Messenger) Deliver(ctx context.Context, channelID string, c card.Card) (string, error) {
	_, ts, err := m.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(truncate(c.Text, maxSectionText), false),
		slack.MsgOptionBlocks(cardBlocks(c)...),
	)
	if err != nil {
		return "", fmt.Errorf("PostMessage failed: %w", err)
	}
	return ts, nil
}

func (m *Messenger) Edit(ctx context.Context, channelID, messageID string, c card.Card) error {
	_, _, _, err := m.client.UpdateMessageContext(ctx, channelID, messageID,
		slack.MsgOptionText(truncate(c.Text, maxSectionText), false),
		slack.MsgOptionBlocks(cardBlocks(c)...),
	)
	if err != nil {
		return fmt.Errorf("UpdateMessage failed: %w", err)
	}
	return nil
}

func (m *Messenger) Post(ctx context.Context, channelID, text string) error {
	if _, _, err := m.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("PostMessage failed: %w", err)
	}
	return nil
}

func (m *Messenger) Notify(ctx context.Context, channelID, userID, text string) error {
	if _, err := m.client.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("PostEphemeral failed: %w", err)
	}
	return nil
}

func (m *Messenger) Fetch(ctx context.Context, url string, w io.Writer) error {
	return m.client.GetFileContext(ctx, url, w)
}
