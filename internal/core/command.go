package core

// CommandKind describes what the local session wants the backend to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the connection to a room's stream.
	CommandJoinRoom CommandKind = iota
	// CommandSendMessage publishes a composed message.
	CommandSendMessage
	// CommandSendReaction reacts to a message.
	CommandSendReaction
	// CommandDeleteMessage asks the backend to delete one of our messages.
	CommandDeleteMessage
	// CommandTyping signals that the local user is typing.
	CommandTyping
)

// Command is an outbound request. Commands are fire-and-forget: the effect
// only becomes visible once the backend broadcasts it back.
type Command struct {
	Kind      CommandKind
	Room      string
	Sender    string
	Message   Message       // CommandSendMessage
	Reaction  ReactionEntry // CommandSendReaction
	MessageID string        // CommandDeleteMessage
}
