package core

// View is a read-only copy of the projection handed to the render layer.
type View struct {
	RoomID   string
	Messages []Message
	Presence int
	Notice   string
	Typing   string
}

// View returns a copy of the current projection with image captions resolved.
func (e *Engine) View() View {
	e.mu.RLock()
	msgs := make([]Message, len(e.messages))
	for i, m := range e.messages {
		m = m.Clone()
		if m.Kind == KindImageWithCaption && m.Caption == "" {
			m.Caption = e.captions[m.Body]
		}
		msgs[i] = m
	}
	presence := e.presence
	e.mu.RUnlock()

	return View{
		RoomID:   e.scope.RoomID,
		Messages: msgs,
		Presence: presence,
		Notice:   e.notice.get(),
		Typing:   e.typing.get(),
	}
}

// Len returns the number of messages in the list.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.messages)
}

// Message looks a message up by id.
func (e *Engine) Message(id string) (Message, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, m := range e.messages {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return Message{}, false
}

// MessageAt returns the message at position i of the ordered list.
func (e *Engine) MessageAt(i int) (Message, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.messages) {
		return Message{}, false
	}
	return e.messages[i].Clone(), true
}

// Reactions aggregates the reaction log for one message.
func (e *Engine) Reactions(messageID string) []ReactionCount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Aggregate(e.reactions, messageID)
}

// ReactionLog returns a copy of the raw reaction log.
func (e *Engine) ReactionLog() []ReactionEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ReactionEntry, len(e.reactions))
	copy(out, e.reactions)
	return out
}

// CanDelete reports whether the local session may delete message id.
// Only own messages are deletable; others can only be reacted to.
func (e *Engine) CanDelete(id string) error {
	m, ok := e.Message(id)
	if !ok {
		return ErrUnknownMessage
	}
	if !m.IsOwn {
		return ErrNotOwnMessage
	}
	return nil
}
