package state

import (
	"sync"

	"telegramsupportbot/pkg/ports/botport"

	"github.com/looplab/fsm"
)

// Draft accumulates the answers of an in-flight support request.
// Optional values stay empty until the corresponding step fills them.
type Draft struct {
	Name           string
	Email          string
	Problem        string
	AttachmentPath string
	AttachmentKind string

	// Forwarded-message shortcut: the requester identity comes from the
	// forward origin, the staff identity from the sender.
	Forwarded         bool
	RequesterID       int64
	RequesterUsername string
	RequesterName     string
	StaffID           int64
	StaffName         string
}

// Session is the in-memory conversation progress for one user.
type Session struct {
	UserID   int64
	UserName string
	Username string

	SupportFSM *fsm.FSM
	Draft      *Draft

	LastMessageID int
	LastPrompt    botport.BotMessage

	Mu sync.Mutex
}

// ReplySession is the single-shot admin reply state: the next text message
// from the admin is relayed to RequesterID and recorded against RequestID.
type ReplySession struct {
	RequesterID int64
	RequestID   uint
}

func NewDraft() *Draft {
	return &Draft{}
}

// State returns the current conversation step, StateIdle when no FSM is attached.
func (s *Session) State() string {
	if s == nil || s.SupportFSM == nil {
		return StateIdle
	}
	return s.SupportFSM.Current()
}
