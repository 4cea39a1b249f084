package domain

import "strings"

// DefaultRoleName is granted when a guild has not configured a role name.
const DefaultRoleName = "Verified"

// GuildPolicy is the per-guild verification configuration. PK: guild_id.
// Created lazily the first time any admin command touches a guild.
type GuildPolicy struct {
	GuildID  string   `json:"guild_id" dynamodbav:"guild_id"`
	Domains  []string `json:"domains" dynamodbav:"domains,stringset,omitempty"` // lowercase
	OnJoin   bool     `json:"on_join" dynamodbav:"on_join"`
	RoleName string   `json:"role_name" dynamodbav:"role_name"`
}

// AllowsDomain reports whether an email domain may verify in this guild.
// Comparison is case-insensitive. An empty configured set falls back to the
// single built-in default domain.
func (p *GuildPolicy) AllowsDomain(emailDomain, defaultDomain string) bool {
	emailDomain = strings.ToLower(emailDomain)
	if len(p.Domains) == 0 {
		return emailDomain == strings.ToLower(defaultDomain)
	}
	for _, d := range p.Domains {
		if strings.ToLower(d) == emailDomain {
			return true
		}
	}
	return false
}
