package filewatch

// Op is the kind of filesystem event delivered to the controller.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpDeleted
	OpMoved
	OpClosed
)

// String returns a lowercase label for the operation.
func (op Op) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	case OpMoved:
		return "moved"
	case OpClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one filesystem observation. Path is the absolute path the event
// applies to; OldPath is set only for OpMoved and names the previous location.
type Event struct {
	Op      Op
	Path    string
	OldPath string
}
