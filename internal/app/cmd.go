package app

import "strings"

// Command は roombook の第1引数で選ぶ起動モード。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"
	CommandSeed    Command = "seed"
	// CommandHealthcheck はシェルのないdistrolessイメージでHEALTHCHECKに使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandSeed):        CommandSeed,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は引数からCommandを決める。未指定や未知の値はserve。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if c, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return c
	}
	return CommandServe
}
