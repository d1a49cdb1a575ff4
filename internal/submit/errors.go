package submit

import (
	"fmt"
	"strings"
)

// Kind classifies a submission failure.
type Kind string

const (
	// KindValidation means the aggregate is incomplete; no network call was made.
	KindValidation Kind = "validation"
	// KindRemote means the remote data service rejected or failed a call.
	KindRemote Kind = "remote"
	// KindCallback means the completion callback failed.
	KindCallback Kind = "callback"
	// KindCancelled means the caller gave up while the logo upload was pending.
	KindCancelled Kind = "cancelled"
)

// Error is returned by Submit. Step names the wizard step the user should
// revisit; Op names the stage that failed.
type Error struct {
	Kind Kind
	Step string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	parts := []string{"submit"}
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements the classifier interface used by hosts to map failures.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}
