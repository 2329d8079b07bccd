package card

import (
	"fmt"
	"strings"

	"github.com/pyama86/slaffic-ticket/domain/model"
)

type Style string

const (
	StyleDefault Style = ""
	StylePrimary Style = "primary"
	StyleDanger  Style = "danger"
)

type Action struct {
	Label   string
	Style   Style
	Payload Payload
}

// Card は投稿先チャンネルに表示するチケットのカード
type Card struct {
	Text    string
	Actions []Action
}

type Options struct {
	TaskTracking bool
	// 部署コードから表示名を引く。nil ならコードをそのまま使う
	Label func(model.Department) string
}

// Renderer はチケットからカードを組み立てる。同じ入力には常に同じ出力を返す
type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

var statusEmoji = map[model.Status]string{
	model.StatusOpen:       "🆕",
	model.StatusInProgress: "🔄",
	model.StatusDone:       "✅",
	model.StatusEscalated:  "🚨",
	model.StatusClosed:     "🔒",
}

func StatusLabel(s model.Status) string {
	if e, ok := statusEmoji[s]; ok {
		return fmt.Sprintf("%s %s", e, s)
	}
	return string(s)
}

func (r *Renderer) label(dept model.Department) string {
	if r.opts.Label == nil {
		return string(dept)
	}
	return r.opts.Label(dept)
}

func (r *Renderer) Render(t model.Ticket) Card {
	return Card{
		Text:    r.text(t),
		Actions: r.actions(t),
	}
}

// 本文が長くて切り詰められてもメタ情報は残るよう、本文は最後に置く
func (r *Renderer) text(t model.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎫 *新しいチケット* `%s`\n", t.ID)
	fmt.Fprintf(&b, "*👤 依頼者:* %s (%s)\n", t.CreatedByName, t.CreatedByID)
	fmt.Fprintf(&b, "*💬 依頼元:* %s (%s)\n", t.SourceChannelTitle, t.SourceChannelID)
	fmt.Fprintf(&b, "*📁 部署:* %s\n", r.label(t.Department))
	fmt.Fprintf(&b, "*📊 ステータス:* %s\n", StatusLabel(t.Status))
	if t.AssigneeID != "" {
		fmt.Fprintf(&b, "*🙋 担当者:* <@%s>\n", t.AssigneeID)
	}
	if t.AttachmentName != "" {
		fmt.Fprintf(&b, "*📎 添付:* %s\n", t.AttachmentName)
	}
	b.WriteString("\n")
	b.WriteString(t.Body)
	return b.String()
}

func (r *Renderer) actions(t model.Ticket) []Action {
	if t.Status.Terminal() {
		return nil
	}

	var actions []Action
	switch t.Status {
	case model.StatusOpen, model.StatusEscalated:
		actions = append(actions,
			Action{Label: "🔄 対応中", Payload: TicketPayload(model.ActionProgress, t.ID)},
			Action{Label: "✅ 完了", Style: StylePrimary, Payload: TicketPayload(model.ActionDone, t.ID)},
		)
	case model.StatusInProgress:
		actions = append(actions,
			Action{Label: "✅ 完了", Style: StylePrimary, Payload: TicketPayload(model.ActionDone, t.ID)},
		)
	}

	if !r.opts.TaskTracking {
		return actions
	}
	if t.AssigneeID == "" {
		actions = append(actions, Action{Label: "🙋 担当する", Payload: TicketPayload(model.ActionClaim, t.ID)})
	}
	if model.ValidTransition(model.ActionEscalate, t.Status) {
		actions = append(actions, Action{Label: "🚨 エスカレーション", Style: StyleDanger, Payload: TicketPayload(model.ActionEscalate, t.ID)})
	}
	return actions
}

// StatusLine は /status やダッシュボード向けの1行表示
func (r *Renderer) StatusLine(t model.Ticket) string {
	line := fmt.Sprintf("`%s` %s %s", t.ID, r.label(t.Department), StatusLabel(t.Status))
	if t.AssigneeID != "" {
		line += fmt.Sprintf(" 担当:<@%s>", t.AssigneeID)
	}
	return line + " " + Excerpt(t.Body, 40)
}

// Summary は未完了チケット一覧。空なら空である旨を返す
func (r *Renderer) Summary(title string, tickets []model.Ticket) string {
	if len(tickets) == 0 {
		return fmt.Sprintf("*%s*\n未完了のチケットはありません 🎉", title)
	}
	lines := make([]string, 0, len(tickets)+1)
	lines = append(lines, fmt.Sprintf("*%s* (%d件)", title, len(tickets)))
	for _, t := range tickets {
		lines = append(lines, "• "+r.StatusLine(t))
	}
	return strings.Join(lines, "\n")
}

// Excerpt は本文の先頭を1行に収めて返す
func Excerpt(body string, limit int) string {
	s := strings.Join(strings.Fields(body), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
