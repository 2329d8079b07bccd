package infra

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

type DataBase struct {
	db *gorm.DB
}

func NewDataBase(dbpath string) (*DataBase, error) {
	if dbpath == "" {
		dbpath = "./db/slaffic_ticket.db"
	}
	if !path.IsAbs(dbpath) {
		dbpath = path.Join(os.Getenv("PWD"), dbpath)
	}
	if err := os.MkdirAll(filepath.Dir(dbpath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	// 書き込みトランザクションは BEGIN IMMEDIATE で直列化する
	db, err := gorm.Open("sqlite3", dbpath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	db.DB().SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Ticket{}, &model.DailyCounter{}, &model.Announcement{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &DataBase{db: db}, nil
}

func (d *DataBase) NextTicketID(ctx context.Context, prefix string, at time.Time) (string, error) {
	day := model.TicketDay(at)
	var counter model.DailyCounter
	err := d.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DailyCounter{}).
			Where("day = ? AND prefix = ?", day, prefix).
			UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&model.DailyCounter{Day: day, Prefix: prefix, Value: 1}).Error; err != nil {
				return err
			}
		}
		return tx.Where("day = ? AND prefix = ?", day, prefix).First(&counter).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to increment counter %s/%s: %w", prefix, day, err)
	}
	return model.FormatTicketID(prefix, day, counter.Value), nil
}

func (d *DataBase) SaveTicket(ctx context.Context, t *model.Ticket) error {
	return d.db.Save(t).Error
}

func (d *DataBase) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	err := d.db.Where("id = ?", id).First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DataBase) UpdateTicket(ctx context.Context, id string, mutate func(*model.Ticket) error) (*model.Ticket, error) {
	var t model.Ticket
	err := d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&t).Error
		if gorm.IsRecordNotFoundError(err) {
			return ticketNotFound(id)
		}
		if err != nil {
			return err
		}
		if err := mutate(&t); err != nil {
			return err
		}
		t.Version++
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DataBase) ListOpenTickets(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error) {
	q := d.db.Where("status NOT IN (?)", []string{string(model.StatusDone), string(model.StatusClosed)})
	if filter.Department != "" {
		q = q.Where("department = ?", filter.Department)
	}
	if filter.CreatedByID != "" {
		q = q.Where("created_by_id = ?", filter.CreatedByID)
	}

	var tickets []model.Ticket
	if err := q.Order("created_at asc, id asc").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DataBase) FindTicketByDestination(ctx context.Context, channelID, messageID string) (*model.Ticket, error) {
	var t model.Ticket
	err := d.db.Where("dest_channel_id = ? AND dest_message_id = ?", channelID, messageID).First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ticketNotFound(channelID + "/" + messageID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DataBase) SaveAnnouncement(ctx context.Context, a *model.Announcement) error {
	return d.db.Create(a).Error
}

func (d *DataBase) Close() error {
	return d.db.Close()
}
