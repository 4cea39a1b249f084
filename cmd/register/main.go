// Command register overwrites the application's slash-command set. Run it
// once after deployment and again whenever the command definitions change.
package main

import (
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/verify-bot/internal/config"
	"github.com/verify-bot/internal/core"
)

var commands = []*discordgo.ApplicationCommand{
	{Name: core.CmdVerify, Description: "Start email verification"},
	{
		Name:        core.CmdVerifyCode,
		Description: "Complete verification with the emailed code",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "code",
			Description: "The 6-digit code from your email",
			Required:    true,
		}},
	},
	{Name: core.CmdStatus, Description: "Bot status and server settings"},
	{Name: core.CmdPing, Description: "Response check"},
	{Name: core.CmdHelp, Description: "List available commands"},
	{Name: core.CmdEnableOnJoin, Description: "Prompt new members to verify (admin)"},
	{Name: core.CmdDisableOnJoin, Description: "Stop prompting new members (admin)"},
	{
		Name:        core.CmdDomainAdd,
		Description: "Allow an email domain (admin)",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "domain",
			Description: "Email domain, e.g. example.edu",
			Required:    true,
		}},
	},
	{
		Name:        core.CmdDomainRemove,
		Description: "Remove an email domain (admin)",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "domain",
			Description: "Email domain to remove",
			Required:    true,
		}},
	},
	{
		Name:        core.CmdRoleChange,
		Description: "Change the verified role (admin)",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "rolename",
			Description: "Display name of the role to grant",
			Required:    true,
		}},
	},
	{
		Name:        core.CmdResetUser,
		Description: "Clear a user's verification records (admin)",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to reset",
			Required:    true,
		}},
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()
	if cfg.DiscordToken == "" || cfg.DiscordAppID == "" {
		log.Fatal("DISCORD_TOKEN and DISCORD_APP_ID are required")
	}

	s, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord session: %v", err)
	}

	registered, err := s.ApplicationCommandBulkOverwrite(cfg.DiscordAppID, "", commands)
	if err != nil {
		log.Fatalf("register commands: %v", err)
	}
	for _, c := range registered {
		log.Printf("registered /%s", c.Name)
	}
}
