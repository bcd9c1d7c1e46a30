package tutor

import "strings"

// CommandKind identifies a desk command.
type CommandKind int

const (
	CmdChat CommandKind = iota
	CmdProblem
	CmdComplexity
	CmdFollowUp
	CmdReset
	CmdBackend
	CmdHelp
	CmdUnknown
)

// Transcript entries recorded for the two one-shot actions.
const (
	ComplexityLabel = "⚡ Check Complexity"
	FollowUpLabel   = "🎯 Follow Up"
)

// Command is a parsed chat message.
type Command struct {
	Kind CommandKind
	Name string // the slash word, without the slash
	Arg  string // rest of the first line
	Body string // following lines
}

// ParseCommand splits a chat message into a command. Anything that does not
// start with a slash is a chat turn carrying the trimmed text in Arg.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CmdChat, Arg: text}
	}

	first, body, _ := strings.Cut(text, "\n")
	name, arg, _ := strings.Cut(strings.TrimSpace(first), " ")
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	// Telegram appends the bot name in groups: /reset@litcode_bot
	name, _, _ = strings.Cut(name, "@")

	cmd := Command{Name: name, Arg: strings.TrimSpace(arg), Body: body}
	switch name {
	case "problem":
		cmd.Kind = CmdProblem
	case "complexity":
		cmd.Kind = CmdComplexity
	case "followup", "follow-up":
		cmd.Kind = CmdFollowUp
	case "reset":
		cmd.Kind = CmdReset
	case "backend":
		cmd.Kind = CmdBackend
	case "help", "start":
		cmd.Kind = CmdHelp
	default:
		cmd.Kind = CmdUnknown
	}
	return cmd
}

// callsBackend reports whether handling the command performs an LLM call.
func (c Command) callsBackend() bool {
	switch c.Kind {
	case CmdChat, CmdComplexity, CmdFollowUp:
		return true
	}
	return false
}

const helpText = `I am your Socratic Mentor. I discuss concepts, not code.

/problem <title> - set the problem; the following lines are your code
/complexity - analyze the time and space complexity of your code
/followup - get a follow-up challenge
/backend <gemini|openai|claude> - switch the model for this chat
/reset - forget the conversation so far

Anything else is a question for the mentor.`
