package engine

// OperatorDirectory tells operators apart from clients. *directory.Directory
// satisfies it.
type OperatorDirectory interface {
	IsOperator(id int) bool
}

// SenderPolicy classifies message senders relative to the viewer.
type SenderPolicy struct {
	ViewerID       int
	SystemSenderID int
	// Operators is optional; without it every other party counts as a client.
	Operators OperatorDirectory
}

// FromOtherParty reports whether sender is neither the viewer nor the
// system identity. Such messages count as unread.
func (p SenderPolicy) FromOtherParty(sender int) bool {
	return sender != p.ViewerID && sender != p.SystemSenderID
}

// FromClient reports whether sender is on the client side of the
// conversation. Only client messages raise action_needed.
func (p SenderPolicy) FromClient(sender int) bool {
	if !p.FromOtherParty(sender) {
		return false
	}
	return p.Operators == nil || !p.Operators.IsOperator(sender)
}
