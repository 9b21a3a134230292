// model/directory.go
package model

// DirectoryGroup is a group as exposed by the remote directory service,
// addressed by its primary email.
type DirectoryGroup struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DirectoryUserName holds the remote account's name parts.
type DirectoryUserName struct {
	FullName   string `json:"full_name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// DirectoryUser is a user account in the remote directory service.
// Password is only ever set on creation; accounts are expected to
// authenticate through federated identity, not this value.
type DirectoryUser struct {
	ID                         string            `json:"id,omitempty"`
	PrimaryEmail               string            `json:"primary_email"`
	Name                       DirectoryUserName `json:"name"`
	Password                   string            `json:"password,omitempty"`
	IncludeInGlobalAddressList bool              `json:"include_in_global_address_list"`
}

// Directory membership roles.
const (
	RoleMember  = "MEMBER"
	RoleManager = "MANAGER"
	RoleOwner   = "OWNER"
)

// DirectoryMember is a membership record of a remote group.
type DirectoryMember struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GroupSettings is the remote group's settings bundle. The default bundle is
// configured once and applied verbatim to newly created groups.
type GroupSettings struct {
	WhoCanViewMembership               string `json:"who_can_view_membership,omitempty" mapstructure:"whoCanViewMembership"`
	WhoCanInvite                       string `json:"who_can_invite,omitempty" mapstructure:"whoCanInvite"`
	WhoCanPostMessage                  string `json:"who_can_post_message,omitempty" mapstructure:"whoCanPostMessage"`
	AllowExternalMembers               bool   `json:"allow_external_members" mapstructure:"allowExternalMembers"`
	AllowWebPosting                    bool   `json:"allow_web_posting" mapstructure:"allowWebPosting"`
	PrimaryLanguage                    string `json:"primary_language,omitempty" mapstructure:"primaryLanguage"`
	MaxMessageBytes                    int    `json:"max_message_bytes,omitempty" mapstructure:"maxMessageBytes"`
	IsArchived                         bool   `json:"is_archived" mapstructure:"isArchived"`
	ArchiveOnly                        bool   `json:"archive_only" mapstructure:"archiveOnly"`
	MessageModerationLevel             string `json:"message_moderation_level,omitempty" mapstructure:"messageModerationLevel"`
	SpamModerationLevel                string `json:"spam_moderation_level,omitempty" mapstructure:"spamModerationLevel"`
	ReplyTo                            string `json:"reply_to,omitempty" mapstructure:"replyTo"`
	CustomReplyTo                      string `json:"custom_reply_to,omitempty" mapstructure:"customReplyTo"`
	SendMessageDenyNotification        bool   `json:"send_message_deny_notification" mapstructure:"sendMessageDenyNotification"`
	DefaultMessageDenyNotificationText string `json:"default_message_deny_notification_text,omitempty" mapstructure:"defaultMessageDenyNotificationText"`
	ShowInGroupDirectory               bool   `json:"show_in_group_directory" mapstructure:"showInGroupDirectory"`
	MembersCanPostAsTheGroup           bool   `json:"members_can_post_as_the_group" mapstructure:"membersCanPostAsTheGroup"`
	MessageDisplayFont                 string `json:"message_display_font,omitempty" mapstructure:"messageDisplayFont"`
	IncludeInGlobalAddressList         bool   `json:"include_in_global_address_list" mapstructure:"includeInGlobalAddressList"`
}
