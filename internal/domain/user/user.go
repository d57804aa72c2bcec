package user

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GroupType is a user's permission group, ordered by privilege.
type GroupType int

const (
	GroupNone          GroupType = 0
	GroupReviewer      GroupType = 10
	GroupExecutive     GroupType = 20
	GroupUploader      GroupType = 30
	GroupAdministrator GroupType = 40
	GroupSystem        GroupType = 50
)

var groupNames = map[GroupType]string{
	GroupNone:          "none",
	GroupReviewer:      "reviewer",
	GroupExecutive:     "executive",
	GroupUploader:      "uploader",
	GroupAdministrator: "administrator",
	GroupSystem:        "system",
}

var ErrUnknownGroup = fmt.Errorf("unknown permission group")

func (g GroupType) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return groupNames[GroupNone]
}

func ParseGroupType(s string) (GroupType, error) {
	for g, name := range groupNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return g, nil
		}
	}
	return GroupNone, fmt.Errorf("%w: %q", ErrUnknownGroup, s)
}

// Permission is a set of capability flags.
type Permission uint32

const (
	PermDataUpload Permission = 1 << iota
	PermDataReview
	PermDataDelete
	PermDataConfirm
	PermUserImpersonation

	PermNone Permission = 0
	PermAll             = PermDataUpload | PermDataReview | PermDataDelete | PermDataConfirm | PermUserImpersonation
)

// PermissionsOf returns what a group may do.
func PermissionsOf(g GroupType) Permission {
	switch g {
	case GroupSystem:
		return PermAll
	case GroupAdministrator:
		return PermAll &^ PermUserImpersonation
	case GroupUploader:
		return PermDataUpload | PermDataReview | PermDataDelete
	case GroupExecutive, GroupReviewer:
		return PermDataReview
	}
	return PermNone
}

// User is an account known to the dashboard.
type User struct {
	ID         string
	Name       string
	Group      GroupType
	TelegramID sql.NullInt64
	IsDeleted  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) Permissions() Permission {
	if u == nil || u.IsDeleted {
		return PermNone
	}
	return PermissionsOf(u.Group)
}

func (u *User) HasPermission(p Permission) bool {
	return u.Permissions()&p == p
}

// IsPrivileged is true for administrators and above; they may overwrite confirmed periods.
func (u *User) IsPrivileged() bool {
	return u != nil && !u.IsDeleted && u.Group >= GroupAdministrator
}

// System is the actor used by scheduled jobs.
func System() *User {
	return &User{ID: "system", Name: "system", Group: GroupSystem}
}
