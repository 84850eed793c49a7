package permissions

import "github.com/bwmarrin/discordgo"

// IsManager reports whether a member may run the server: the owner, an
// administrator or anyone with Manage Server.
func IsManager(perms int64, isOwner bool) bool {
	if isOwner {
		return true
	}
	return perms&discordgo.PermissionAdministrator != 0 || perms&discordgo.PermissionManageServer != 0
}

// IsPrivilegedModerator reports whether a member is exempt from automatic
// moderation.
func IsPrivilegedModerator(perms int64, isOwner bool) bool {
	if IsManager(perms, isOwner) {
		return true
	}
	return perms&discordgo.PermissionBanMembers != 0 && perms&discordgo.PermissionModerateMembers != 0
}
