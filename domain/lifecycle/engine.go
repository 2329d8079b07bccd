package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/slaffic-ticket/domain/directory"
	"github.com/pyama86/slaffic-ticket/domain/infra"
	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/pyama86/slaffic-ticket/domain/router"
)

const defaultDraftTTL = 30 * time.Minute

// Fetcher は添付ファイルをダウンロードする
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) error
}

type Options struct {
	Location   *time.Location
	DraftTTL   time.Duration
	StorageDir string
	Now        func() time.Time
}

// Requester は依頼者と依頼元チャンネル
type Requester struct {
	UserID       string
	UserName     string
	ChannelID    string
	ChannelTitle string
}

// Attachment はカードのスレッドに投稿されたファイル
type Attachment struct {
	Name string
	URL  string
}

type Engine struct {
	ds      infra.Datastore
	dir     *directory.Directory
	router  *router.Router
	fetcher Fetcher

	// 依頼者ごとの下書き。draftMu で確認と更新をまとめて行う
	draftMu sync.Mutex
	drafts  *ttlcache.Cache[string, *model.Draft]

	loc        *time.Location
	storageDir string
	now        func() time.Time
}

func New(ds infra.Datastore, dir *directory.Directory, rt *router.Router, fetcher Fetcher, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = defaultDraftTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		ds:      ds,
		dir:     dir,
		router:  rt,
		fetcher: fetcher,
		drafts: ttlcache.New(
			ttlcache.WithTTL[string, *model.Draft](opts.DraftTTL),
			ttlcache.WithDisableTouchOnHit[string, *model.Draft](),
		),
		loc:        opts.Location,
		storageDir: opts.StorageDir,
		now:        opts.Now,
	}
}

// BeginDraft は依頼者を本文待ちにする。既存の下書きは捨てる
func (e *Engine) BeginDraft(r Requester) {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	e.drafts.Set(r.UserID, &model.Draft{
		UserID:       r.UserID,
		UserName:     r.UserName,
		ChannelID:    r.ChannelID,
		ChannelTitle: r.ChannelTitle,
		Awaiting:     true,
		StartedAt:    e.now(),
	}, ttlcache.DefaultTTL)
}

// CaptureDraft は本文待ちの依頼者が同じチャンネルに投稿したテキストを本文として取り込む。
// 取り込まなかった場合は false
func (e *Engine) CaptureDraft(userID, channelID, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	item := e.drafts.Get(userID)
	if item == nil {
		return false
	}
	d := *item.Value()
	if !d.Awaiting || d.ChannelID != channelID {
		return false
	}
	d.Body = text
	d.Awaiting = false
	e.drafts.Set(userID, &d, ttlcache.DefaultTTL)
	return true
}

// Draft は依頼者の下書きを返す
func (e *Engine) Draft(userID string) (model.Draft, bool) {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	item := e.drafts.Get(userID)
	if item == nil {
		return model.Draft{}, false
	}
	return *item.Value(), true
}

func (e *Engine) CancelDraft(userID string) bool {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	_, ok := e.drafts.GetAndDelete(userID)
	return ok
}

func (e *Engine) takeDraft(userID string) (*model.Draft, error) {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	item := e.drafts.Get(userID)
	if item == nil || !item.Value().Ready() {
		return nil, fmt.Errorf("%w: user=%s", model.ErrNoDraft, userID)
	}
	e.drafts.Delete(userID)
	return item.Value(), nil
}

// Submit は下書きから部署のチケットを作って投稿する。
// 未対応の部署なら下書きは残したまま何も変更しない
func (e *Engine) Submit(ctx context.Context, userID string, dept model.Department) (*model.Ticket, error) {
	managerID, err := e.dir.ResolveManager(dept)
	if err != nil {
		return nil, err
	}
	channelID, err := e.dir.ResolveDestination(dept)
	if err != nil {
		return nil, err
	}

	draft, err := e.takeDraft(userID)
	if err != nil {
		return nil, err
	}

	now := e.now().In(e.loc)
	id, err := e.ds.NextTicketID(ctx, dept.Prefix(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to assign ticket id: %w", err)
	}

	t := &model.Ticket{
		ID:                 id,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedByID:        draft.UserID,
		CreatedByName:      draft.UserName,
		SourceChannelID:    draft.ChannelID,
		SourceChannelTitle: draft.ChannelTitle,
		Department:         dept,
		Body:               draft.Body,
		Status:             model.StatusOpen,
		ManagerID:          managerID,
		Version:            1,
	}
	if err := e.ds.SaveTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save ticket %s: %w", id, err)
	}
	slog.Info("ticket created",
		slog.String("ticket", id),
		slog.String("department", string(dept)),
		slog.String("user", userID))

	published, err := e.router.Publish(ctx, t, channelID)
	if err != nil {
		// 投稿先なしのチケットとして残る
		return t, err
	}
	return published, nil
}

// Apply はボタン操作をステータス変更か担当者設定に振り分ける
func (e *Engine) Apply(ctx context.Context, actorID, ticketID string, action model.Action) (*model.Ticket, error) {
	if action == model.ActionClaim {
		return e.Claim(ctx, actorID, ticketID)
	}
	return e.Transition(ctx, actorID, ticketID, action)
}

// Transition はマネージャか管理者によるステータス変更。
// 保存後にカードを描き直し、描き直せなかったら model.ErrRenderSync を返す
func (e *Engine) Transition(ctx context.Context, actorID, ticketID string, action model.Action) (*model.Ticket, error) {
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", model.ErrInvalidTransition, action)
	}

	updated, err := e.ds.UpdateTicket(ctx, ticketID, func(t *model.Ticket) error {
		if !e.dir.CanManage(actorID, t) {
			return fmt.Errorf("%w: user=%s ticket=%s", model.ErrUnauthorized, actorID, t.ID)
		}
		if !model.ValidTransition(action, t.Status) {
			return fmt.Errorf("%w: ticket=%s %s -> %s", model.ErrInvalidTransition, t.ID, t.Status, target)
		}
		t.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("ticket status changed",
		slog.String("ticket", updated.ID),
		slog.String("status", string(updated.Status)),
		slog.String("actor", actorID))

	return updated, e.afterUpdate(ctx, updated, actorID)
}

// Claim は担当者として名乗り出る。権限チェックはなく、付け替えもできる
func (e *Engine) Claim(ctx context.Context, actorID, ticketID string) (*model.Ticket, error) {
	updated, err := e.ds.UpdateTicket(ctx, ticketID, func(t *model.Ticket) error {
		if !model.ValidTransition(model.ActionClaim, t.Status) {
			return fmt.Errorf("%w: ticket=%s is %s", model.ErrInvalidTransition, t.ID, t.Status)
		}
		t.AssigneeID = actorID
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("ticket claimed", slog.String("ticket", updated.ID), slog.String("assignee", actorID))

	return updated, e.afterUpdate(ctx, updated, actorID)
}

func (e *Engine) afterUpdate(ctx context.Context, t *model.Ticket, actorID string) error {
	err := e.router.Refresh(ctx, t)
	e.router.MirrorStatus(ctx, t, actorID)
	return err
}

// Attach はカードのスレッドに投稿されたファイルを保存してチケットに紐付ける
func (e *Engine) Attach(ctx context.Context, actorID, channelID, threadTS string, file Attachment) (*model.Ticket, error) {
	t, err := e.ds.FindTicketByDestination(ctx, channelID, threadTS)
	if err != nil {
		return nil, err
	}

	name := sanitizeFileName(file.Name)
	dir := filepath.Join(e.storageDir, t.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	path := filepath.Join(dir, name)

	// ダウンロード中はストアに触らない
	if err := e.download(ctx, file.URL, path); err != nil {
		return nil, err
	}

	updated, err := e.ds.UpdateTicket(ctx, t.ID, func(cur *model.Ticket) error {
		cur.AttachmentName = name
		cur.AttachmentPath = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("attachment stored",
		slog.String("ticket", updated.ID),
		slog.String("path", path),
		slog.String("user", actorID))

	return updated, e.router.Refresh(ctx, updated)
}

func (e *Engine) download(ctx context.Context, url, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := e.fetcher.Fetch(ctx, url, f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to download attachment: %w", err)
	}
	return f.Close()
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" || name == ".." {
		return "attachment"
	}
	return name
}

// Status は /status 向けの読み取り専用の参照
func (e *Engine) Status(ctx context.Context, ticketID string) (*model.Ticket, error) {
	return e.ds.GetTicket(ctx, ticketID)
}

func (e *Engine) ListOpen(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error) {
	return e.ds.ListOpenTickets(ctx, filter)
}
