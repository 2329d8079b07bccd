package directory

import (
	"fmt"

	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

type entry struct {
	label     string
	managerID string
	channelID string
}

// Directory は部署ごとのマネージャと投稿先チャンネルの対応表。起動時に一度だけ作る
type Directory struct {
	adminID string
	order   []model.Department
	entries map[model.Department]entry
}

func New(cfg *config.Config) *Directory {
	d := &Directory{
		adminID: cfg.AdminID,
		entries: make(map[model.Department]entry, len(cfg.Departments)),
	}
	for _, dept := range cfg.Departments {
		d.order = append(d.order, dept.Code)
		d.entries[dept.Code] = entry{
			label:     dept.Label,
			managerID: dept.ManagerID,
			channelID: dept.ChannelID,
		}
	}
	return d
}

func (d *Directory) AdminID() string {
	return d.adminID
}

func (d *Directory) IsAdmin(userID string) bool {
	return userID != "" && userID == d.adminID
}

func (d *Directory) Supported(dept model.Department) bool {
	_, ok := d.entries[dept]
	return ok
}

// Departments は設定順の部署一覧を返す
func (d *Directory) Departments() []model.Department {
	return append([]model.Department(nil), d.order...)
}

// ResolveManager は部署のマネージャを返す。未設定なら管理者にフォールバックする
func (d *Directory) ResolveManager(dept model.Department) (string, error) {
	e, ok := d.entries[dept]
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnsupportedDepartment, dept)
	}
	if e.managerID == "" {
		return d.adminID, nil
	}
	return e.managerID, nil
}

func (d *Directory) ResolveDestination(dept model.Department) (string, error) {
	e, ok := d.entries[dept]
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnsupportedDepartment, dept)
	}
	return e.channelID, nil
}

func (d *Directory) Label(dept model.Department) string {
	if e, ok := d.entries[dept]; ok && e.label != "" {
		return e.label
	}
	return string(dept)
}

// CanManage はチケットのステータスを変更できるかどうか
func (d *Directory) CanManage(userID string, t *model.Ticket) bool {
	if userID == "" {
		return false
	}
	return userID == t.ManagerID || d.IsAdmin(userID)
}
