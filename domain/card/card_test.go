package card

import (
	"strings"
	"testing"
	"time"

	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTicket(status model.Status) model.Ticket {
	return model.Ticket{
		ID:                 "IT-20240601-0001",
		CreatedAt:          time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		CreatedByID:        "U100",
		CreatedByName:      "alice",
		SourceChannelID:    "C100",
		SourceChannelTitle: "general",
		Department:         "IT",
		Body:               "VPN is down",
		Status:             status,
		ManagerID:          "U200",
	}
}

func payloads(c Card) []string {
	var out []string
	for _, a := range c.Actions {
		out = append(out, a.Payload.Encode())
	}
	return out
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(Options{Label: func(d model.Department) string { return "🖥 " + string(d) }})
	c := r.Render(testTicket(model.StatusOpen))

	assert.Contains(t, c.Text, "IT-20240601-0001")
	assert.Contains(t, c.Text, "alice (U100)")
	assert.Contains(t, c.Text, "general (C100)")
	assert.Contains(t, c.Text, "🖥 IT")
	assert.Contains(t, c.Text, "OPEN")
	assert.True(t, strings.HasSuffix(c.Text, "\n\nVPN is down"))
	assert.Equal(t, []string{"ticket|progress|IT-20240601-0001", "ticket|done|IT-20240601-0001"}, payloads(c))

	// 同じ入力なら同じ出力
	assert.Equal(t, c, r.Render(testTicket(model.StatusOpen)))
}

func TestRenderer_Actions(t *testing.T) {
	cases := []struct {
		name     string
		tracking bool
		status   model.Status
		assignee string
		want     []model.Action
	}{
		{"open", false, model.StatusOpen, "", []model.Action{model.ActionProgress, model.ActionDone}},
		{"in progress", false, model.StatusInProgress, "", []model.Action{model.ActionDone}},
		{"escalated", false, model.StatusEscalated, "", []model.Action{model.ActionProgress, model.ActionDone}},
		{"done", false, model.StatusDone, "", nil},
		{"closed", false, model.StatusClosed, "", nil},
		{"tracking open", true, model.StatusOpen, "", []model.Action{model.ActionProgress, model.ActionDone, model.ActionClaim, model.ActionEscalate}},
		{"tracking assigned", true, model.StatusInProgress, "U300", []model.Action{model.ActionDone, model.ActionEscalate}},
		{"tracking escalated", true, model.StatusEscalated, "U300", []model.Action{model.ActionProgress, model.ActionDone}},
		{"tracking done", true, model.StatusDone, "", nil},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			ticket := testTicket(tt.status)
			ticket.AssigneeID = tt.assignee
			c := NewRenderer(Options{TaskTracking: tt.tracking}).Render(ticket)

			var got []model.Action
			for _, a := range c.Actions {
				assert.Equal(t, KindTicket, a.Payload.Kind)
				assert.Equal(t, ticket.ID, a.Payload.Target)
				got = append(got, a.Payload.Action)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_RenderOptionalFields(t *testing.T) {
	ticket := testTicket(model.StatusInProgress)
	ticket.AssigneeID = "U300"
	ticket.AttachmentName = "screenshot.png"
	ticket.Body = strings.Repeat("x", 5000)

	c := NewRenderer(Options{}).Render(ticket)
	header, body, found := strings.Cut(c.Text, "\n\n")
	require.True(t, found)
	assert.Contains(t, header, "<@U300>")
	assert.Contains(t, header, "screenshot.png")
	assert.Equal(t, ticket.Body, body)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload("ticket|done|IT-20240601-0001")
	require.NoError(t, err)
	assert.Equal(t, TicketPayload(model.ActionDone, "IT-20240601-0001"), p)

	p, err = ParsePayload(DepartmentPayload("MARKETING").Encode())
	require.NoError(t, err)
	assert.Equal(t, KindDepartment, p.Kind)
	assert.Equal(t, "MARKETING", p.Target)

	for _, raw := range []string{
		"",
		"ticket|done",
		"ticket|done|",
		"ticket|reopen|IT-20240601-0001",
		"dept|done|IT",
		"user|select|IT",
		"ticket|done|a|b",
	} {
		_, err := ParsePayload(raw)
		assert.ErrorIs(t, err, ErrMalformedPayload, raw)
	}
}

func TestRenderer_Summary(t *testing.T) {
	r := NewRenderer(Options{})
	assert.Contains(t, r.Summary("未完了チケット", nil), "ありません")

	ticket := testTicket(model.StatusOpen)
	ticket.Body = "line1\nline2"
	s := r.Summary("未完了チケット", []model.Ticket{ticket})
	assert.Contains(t, s, "(1件)")
	assert.Contains(t, s, "`IT-20240601-0001`")
	assert.Contains(t, s, "line1 line2")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", Excerpt("abc", 5))
	assert.Equal(t, "あいう…", Excerpt("あいうえお", 3))
}
