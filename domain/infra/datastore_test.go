package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestTicket(id string, createdAt time.Time) *model.Ticket {
	return &model.Ticket{
		ID:                 id,
		CreatedAt:          createdAt,
		CreatedByID:        "U100",
		CreatedByName:      "alice",
		SourceChannelID:    "C100",
		SourceChannelTitle: "general",
		Department:         "IT",
		Body:               "VPN is down",
		Status:             model.StatusOpen,
		ManagerID:          "U200",
		Version:            1,
	}
}

// testDatastore は全ドライバ共通の振る舞いを確認する
func testDatastore(t *testing.T, ds Datastore) {
	ctx := context.Background()

	t.Run("NextTicketID", func(t *testing.T) {
		id, err := ds.NextTicketID(ctx, "IT", testDay)
		require.NoError(t, err)
		assert.Equal(t, "IT-20240601-0001", id)

		id, err = ds.NextTicketID(ctx, "IT", testDay)
		require.NoError(t, err)
		assert.Equal(t, "IT-20240601-0002", id)

		// プレフィックスと日付ごとに独立した連番
		id, err = ds.NextTicketID(ctx, "MARKETING", testDay)
		require.NoError(t, err)
		assert.Equal(t, "MARKETING-20240601-0001", id)

		id, err = ds.NextTicketID(ctx, "IT", testDay.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, "IT-20240602-0001", id)
	})

	t.Run("NextTicketID concurrent", func(t *testing.T) {
		const n = 20
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[string]bool{}
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := ds.NextTicketID(ctx, "OPS", testDay)
				assert.NoError(t, err)
				mu.Lock()
				ids[id] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, ids, n)
		for i := 1; i <= n; i++ {
			assert.True(t, ids[fmt.Sprintf("OPS-20240601-%04d", i)], i)
		}
	})

	t.Run("GetTicket not found", func(t *testing.T) {
		_, err := ds.GetTicket(ctx, "IT-19990101-0001")
		assert.ErrorIs(t, err, model.ErrTicketNotFound)
	})

	t.Run("Save and Update", func(t *testing.T) {
		ticket := newTestTicket("IT-20240601-0100", testDay)
		require.NoError(t, ds.SaveTicket(ctx, ticket))

		got, err := ds.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusOpen, got.Status)
		assert.Equal(t, "VPN is down", got.Body)
		assert.False(t, got.HasDestination())

		updated, err := ds.UpdateTicket(ctx, ticket.ID, func(t *model.Ticket) error {
			t.Status = model.StatusInProgress
			return t.SetDestination("C200", "1717236000.000100")
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, updated.Status)
		assert.Equal(t, 2, updated.Version)

		found, err := ds.FindTicketByDestination(ctx, "C200", "1717236000.000100")
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, found.ID)

		_, err = ds.FindTicketByDestination(ctx, "C200", "0000000000.000000")
		assert.ErrorIs(t, err, model.ErrTicketNotFound)

		// コールバックがエラーを返したら何も書かない
		boom := errors.New("boom")
		_, err = ds.UpdateTicket(ctx, ticket.ID, func(t *model.Ticket) error {
			t.Status = model.StatusClosed
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err = ds.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		assert.Equal(t, 2, got.Version)

		_, err = ds.UpdateTicket(ctx, "IT-19990101-0001", func(t *model.Ticket) error { return nil })
		assert.ErrorIs(t, err, model.ErrTicketNotFound)
	})

	t.Run("UpdateTicket concurrent", func(t *testing.T) {
		ticket := newTestTicket("IT-20240601-0200", testDay)
		require.NoError(t, ds.SaveTicket(ctx, ticket))

		const n = 5
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := ds.UpdateTicket(ctx, ticket.ID, func(t *model.Ticket) error {
					t.Body += "!"
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := ds.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, "VPN is down!!!!!", got.Body)
		assert.Equal(t, 1+n, got.Version)
	})

	t.Run("ListOpenTickets", func(t *testing.T) {
		base := testDay.AddDate(0, 1, 0)
		first := newTestTicket("RD-20240701-0001", base)
		first.Department = "RD"
		second := newTestTicket("RD-20240701-0002", base.Add(time.Minute))
		second.Department = "RD"
		second.CreatedByID = "U999"
		done := newTestTicket("RD-20240701-0003", base.Add(2*time.Minute))
		done.Department = "RD"
		done.Status = model.StatusDone
		for _, ticket := range []*model.Ticket{second, done, first} {
			require.NoError(t, ds.SaveTicket(ctx, ticket))
		}

		tickets, err := ds.ListOpenTickets(ctx, model.TicketFilter{Department: "RD"})
		require.NoError(t, err)
		require.Len(t, tickets, 2)
		assert.Equal(t, first.ID, tickets[0].ID)
		assert.Equal(t, second.ID, tickets[1].ID)

		tickets, err = ds.ListOpenTickets(ctx, model.TicketFilter{Department: "RD", CreatedByID: "U999"})
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, second.ID, tickets[0].ID)
	})

	t.Run("SaveAnnouncement", func(t *testing.T) {
		err := ds.SaveAnnouncement(ctx, &model.Announcement{
			ID:         uuid.NewString(),
			SenderID:   "U100",
			SenderName: "alice",
			ChannelID:  "C300",
			Message:    "maintenance tonight",
			Delivered:  3,
			SentAt:     testDay,
		})
		assert.NoError(t, err)
	})
}
