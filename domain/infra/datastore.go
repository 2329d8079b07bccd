package infra

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

// 楽観ロックの衝突時に読み直す回数
const maxUpdateRetries = 10

type Datastore interface {
	// 日付とプレフィックスごとに連番を払い出してチケットIDを返す
	NextTicketID(ctx context.Context, prefix string, at time.Time) (string, error)
	// チケットを丸ごと保存する
	SaveTicket(ctx context.Context, t *model.Ticket) error
	// チケットを取得する。存在しなければ model.ErrTicketNotFound
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	// 最新のチケットを読み直して mutate を適用し保存する。mutate がエラーを返したら何も書かない
	UpdateTicket(ctx context.Context, id string, mutate func(*model.Ticket) error) (*model.Ticket, error)
	// 未完了のチケットを作成順に取得する
	ListOpenTickets(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error)
	// カードの投稿先からチケットを引く
	FindTicketByDestination(ctx context.Context, channelID, messageID string) (*model.Ticket, error)
	// アナウンスの送信履歴を保存する
	SaveAnnouncement(ctx context.Context, a *model.Announcement) error
	Close() error
}

// NewDatastore は DB_DRIVER に応じた実装を返す
func NewDatastore(ctx context.Context, cfg config.StoreConfig) (Datastore, error) {
	switch cfg.Driver {
	case config.DriverDynamoDB:
		return NewDynamoDB(ctx, cfg)
	case config.DriverRedis:
		return NewRedis(ctx, cfg)
	case config.DriverSQLite, "":
		return NewDataBase(cfg.Path)
	}
	return nil, fmt.Errorf("unknown datastore driver: %s", cfg.Driver)
}

func ticketNotFound(id string) error {
	return fmt.Errorf("%w: %s", model.ErrTicketNotFound, id)
}

func sortTickets(tickets []model.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}
