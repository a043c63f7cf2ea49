package membership

import (
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
)

// State is where a (user, group) pair sits in the join lifecycle.
//
//	NONE --invite(registered)--> INVITED
//	NONE --invite(unregistered)--> EMAIL_PENDING
//	NONE --requestJoin--> INVITED
//	EMAIL_PENDING --acceptInvitationByEmail--> MEMBER
//	INVITED --approve--> MEMBER
//	INVITED --reject--> NONE
//	MEMBER --remove--> NONE
type State string

const (
	StateNone         State = "NONE"
	StateInvited      State = "INVITED"
	StateEmailPending State = "EMAIL_PENDING"
	StateMember       State = "MEMBER"
)

// JoinState derives the pair's state from the group record. email may be
// empty when the user's address is unknown.
func JoinState(g models.Group, userID, email string) State {
	switch {
	case userID != "" && g.HasMember(userID):
		return StateMember
	case userID != "" && g.HasJoinRequest(userID):
		return StateInvited
	case email != "" && g.HasInvitation(normalize.Email(email)):
		return StateEmailPending
	default:
		return StateNone
	}
}
