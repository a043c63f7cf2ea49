package membership

import "errors"

// Result codes.
const (
	CodeJoinRequestSent = "join_request_sent"
	CodeInvitationSent  = "invitation_sent"
	CodeValidation      = "validation"
	CodeAlreadyMember   = "already_member"
	CodeAlreadyPending  = "already_pending"
	CodeAlreadyInvited  = "already_invited"
)

// Result is the outcome of an invitation. Message is meant to be shown to the
// admin as-is. Data carries the ids and flags the dashboard uses.
type Result struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Err returns the sentinel matching a failed Result's code, or nil.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	switch r.Code {
	case CodeAlreadyMember:
		return ErrAlreadyMember
	case CodeAlreadyPending:
		return ErrAlreadyPending
	case CodeAlreadyInvited:
		return ErrAlreadyInvited
	case CodeValidation:
		field, _ := r.Data["field"].(string)
		return &ValidationError{Field: field, Message: r.Message}
	}
	return nil
}

func failure(cause error, msg string, data map[string]any) Result {
	code := ""
	switch cause {
	case ErrAlreadyMember:
		code = CodeAlreadyMember
	case ErrAlreadyPending:
		code = CodeAlreadyPending
	case ErrAlreadyInvited:
		code = CodeAlreadyInvited
	}
	return Result{Success: false, Code: code, Message: msg, Data: data}
}

func validationResult(err error) Result {
	r := Result{Success: false, Code: CodeValidation, Message: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		r.Message = ve.Message
		r.Data = map[string]any{"field": ve.Field}
	}
	return r
}
