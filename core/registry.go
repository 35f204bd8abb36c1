package core

import "fipos/protocol"

// CommandHandler processes one command frame. The handler decodes its
// own arguments from the frame payload.
type CommandHandler func(f protocol.Frame) error

// Command is one entry in the CAN command set. Ids are fixed by the
// wire protocol rather than assigned at registration.
type Command struct {
	ID      uint8
	Name    string
	Handler CommandHandler
}

// CommandRegistry maps command ids to handlers. Registration happens
// once during bring-up; dispatch runs single-threaded in the command
// loop, so no locking is needed afterwards.
type CommandRegistry struct {
	commands map[uint8]*Command
	unknown  uint32
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint8]*Command),
	}
}

// Register adds a command. Re-registering an id replaces the handler.
func (r *CommandRegistry) Register(id uint8, name string, handler CommandHandler) {
	r.commands[id] = &Command{ID: id, Name: name, Handler: handler}
}

// Dispatch runs the handler for f's command id. Unknown ids are counted
// and otherwise ignored; the bus protocol has no error reply for them.
func (r *CommandRegistry) Dispatch(f protocol.Frame) error {
	cmd, ok := r.commands[f.Command()]
	if !ok || cmd.Handler == nil {
		r.unknown++
		return nil
	}
	return cmd.Handler(f)
}

// GetCommand retrieves a command by id.
func (r *CommandRegistry) GetCommand(id uint8) (*Command, bool) {
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Unknown reports how many frames carried an unregistered command id.
func (r *CommandRegistry) Unknown() uint32 { return r.unknown }

// Count returns the number of registered commands.
func (r *CommandRegistry) Count() int { return len(r.commands) }
