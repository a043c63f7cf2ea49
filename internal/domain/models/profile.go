// internal/domain/models/profile.go
package models

import (
	"time"
)

// Roles a profile can hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// NotificationGroupInvite is the notification type appended when an admin
// invites a registered user.
const NotificationGroupInvite = "group_invite"

// UserProfile is the persisted record for one signed-in user.
//
// ID is the identity provider's subject and never changes. Email is stored
// normalized (trimmed, lowercase) and is unique across profiles. GroupID is
// nil when the user is not affiliated with any group.
type UserProfile struct {
	ID      string  `bson:"_id" json:"id"`
	Name    string  `bson:"name" json:"name"`
	Email   string  `bson:"email" json:"email"`
	Role    string  `bson:"role" json:"role"` // admin | user
	GroupID *string `bson:"group_id,omitempty" json:"group_id,omitempty"`

	Details ProfileDetails `bson:"details" json:"details"`

	ActivityLogs  []ActivityLog     `bson:"activity_logs" json:"activity_logs"`
	FileHistory   []FileHistoryItem `bson:"file_history" json:"file_history"`
	Notifications []Notification    `bson:"notifications" json:"notifications"`

	// Extra keeps attributes written by older clients that have no field here.
	Extra map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the profile holds the admin role.
func (p UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// InGroup reports whether the profile is affiliated with groupID.
func (p UserProfile) InGroup(groupID string) bool {
	return p.GroupID != nil && *p.GroupID == groupID
}

// ProfileDetails are the self-service fields a user edits on their profile.
type ProfileDetails struct {
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Profession string `bson:"profession,omitempty" json:"profession,omitempty"`
	Address    string `bson:"address,omitempty" json:"address,omitempty"`
	Bio        string `bson:"bio,omitempty" json:"bio,omitempty"`
	About      string `bson:"about,omitempty" json:"about,omitempty"`
	Interests  string `bson:"interests,omitempty" json:"interests,omitempty"`
	PhotoURL   string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`

	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	LinkedIn  string `bson:"linkedin,omitempty" json:"linkedin,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	LeetCode  string `bson:"leetcode,omitempty" json:"leetcode,omitempty"`
}

// ActivityLog is one sign-in session. LogoutTime is nil while the session is open.
type ActivityLog struct {
	Date       string     `bson:"date" json:"date"` // YYYY-MM-DD (UTC)
	LoginTime  time.Time  `bson:"login_time" json:"login_time"`
	LogoutTime *time.Time `bson:"logout_time,omitempty" json:"logout_time,omitempty"`
	TotalTime  int64      `bson:"total_time,omitempty" json:"total_time,omitempty"` // seconds
}

// Open reports whether the session has not been closed yet.
func (a ActivityLog) Open() bool {
	return a.LogoutTime == nil
}

// FileHistoryItem describes one uploaded file.
type FileHistoryItem struct {
	Name       string    `bson:"name" json:"name"`
	URL        string    `bson:"url" json:"url"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// Notification is a message delivered on the profile record itself.
type Notification struct {
	ID        string    `bson:"id" json:"id"`
	Type      string    `bson:"type" json:"type"`
	GroupID   string    `bson:"group_id,omitempty" json:"group_id,omitempty"`
	GroupName string    `bson:"group_name,omitempty" json:"group_name,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Read      bool      `bson:"read" json:"read"`
}
