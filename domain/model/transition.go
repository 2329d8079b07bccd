package model

// Action はチケットに対する操作
type Action string

const (
	ActionProgress Action = "progress"
	ActionDone     Action = "done"
	ActionEscalate Action = "escalate"
	ActionClose    Action = "close"
	ActionClaim    Action = "claim"
)

// 終端状態(DONE/CLOSED)からの再オープンは許可しない
var transitionMap = map[Action][]Status{
	ActionProgress: {StatusOpen, StatusEscalated},
	ActionDone:     {StatusOpen, StatusInProgress, StatusEscalated},
	ActionEscalate: {StatusOpen, StatusInProgress},
	ActionClose:    {StatusOpen, StatusInProgress, StatusEscalated, StatusDone},
	ActionClaim:    {StatusOpen, StatusInProgress, StatusEscalated},
}

var actionTarget = map[Action]Status{
	ActionProgress: StatusInProgress,
	ActionDone:     StatusDone,
	ActionEscalate: StatusEscalated,
	ActionClose:    StatusClosed,
}

func (a Action) Valid() bool {
	_, ok := transitionMap[a]
	return ok
}

// Target は操作後のステータス。ステータスを変えない操作は false
func (a Action) Target() (Status, bool) {
	s, ok := actionTarget[a]
	return s, ok
}

// RequiresManager はマネージャか管理者しか実行できない操作かどうか
func (a Action) RequiresManager() bool {
	return a != ActionClaim
}

func ValidTransition(action Action, from Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
