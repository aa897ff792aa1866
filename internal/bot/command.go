package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingOption  = errors.New("missing required option")
)

// command is one parsed slash command. The set of implementations is closed;
// handleCommand switches over all of them.
type command interface {
	commandName() string
}

type trackCommand struct {
	platform  models.Platform
	id        string
	channelID string
	roleID    string
}

type untrackCommand struct {
	platform models.Platform
	id       string
}

type listCommand struct {
	page int
}

type pingCommand struct{}

type helpCommand struct{}

type sourceCodeCommand struct{}

type uptimeCommand struct{}

type usageCommand struct{}

func (trackCommand) commandName() string      { return cmdTrack }
func (untrackCommand) commandName() string    { return cmdUntrack }
func (listCommand) commandName() string       { return cmdList }
func (pingCommand) commandName() string       { return cmdPing }
func (helpCommand) commandName() string       { return cmdHelp }
func (sourceCodeCommand) commandName() string { return cmdSourceCode }
func (uptimeCommand) commandName() string     { return cmdUptime }
func (usageCommand) commandName() string      { return cmdUsage }

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(data discordgo.ApplicationCommandInteractionData) options {
	opts := make(options, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = o
	}
	return opts
}

// str returns the option's snowflake or string value, or "" when absent.
func (o options) str(name string) string {
	opt, ok := o[name]
	if !ok || opt == nil {
		return ""
	}
	v, _ := opt.Value.(string)
	return strings.TrimSpace(v)
}

func (o options) required(name string) (string, error) {
	v := o.str(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", errMissingOption, name)
	}
	return v, nil
}

func (o options) integer(name string) (int, bool) {
	opt, ok := o[name]
	if !ok || opt == nil {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case float64:
		return int(v), true
	case int64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func parseCommand(data discordgo.ApplicationCommandInteractionData) (command, error) {
	opts := optionMap(data)

	switch data.Name {
	case cmdTrack:
		platform, id, err := parseTarget(opts)
		if err != nil {
			return nil, err
		}
		channelID, err := opts.required(optChannel)
		if err != nil {
			return nil, err
		}
		return trackCommand{platform: platform, id: id, channelID: channelID, roleID: opts.str(optRole)}, nil

	case cmdUntrack:
		platform, id, err := parseTarget(opts)
		if err != nil {
			return nil, err
		}
		return untrackCommand{platform: platform, id: id}, nil

	case cmdList:
		page, ok := opts.integer(optPage)
		if !ok || page < 1 {
			page = 1
		}
		return listCommand{page: page}, nil

	case cmdPing:
		return pingCommand{}, nil
	case cmdHelp:
		return helpCommand{}, nil
	case cmdSourceCode:
		return sourceCodeCommand{}, nil
	case cmdUptime:
		return uptimeCommand{}, nil
	case cmdUsage:
		return usageCommand{}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCommand, data.Name)
}

func parseTarget(opts options) (models.Platform, string, error) {
	raw, err := opts.required(optPlatform)
	if err != nil {
		return "", "", err
	}
	platform := models.Platform(strings.ToLower(raw))
	if !platform.Valid() {
		return "", "", fmt.Errorf("unknown platform %q", raw)
	}
	id, err := opts.required(optID)
	if err != nil {
		return "", "", err
	}
	return platform, id, nil
}
