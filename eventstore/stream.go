package eventstore

// StreamName identifies a logical stream, e.g. "Users" or `App\Model\User`.
type StreamName string

// BuildStreamName is a factory method for StreamName.
func BuildStreamName(name string) StreamName {
	return StreamName(name)
}

func (sn StreamName) String() string {
	return string(sn)
}

// Messages is an alias type for a slice of Message
type Messages = []Message

// Stream is an ordered sequence of Messages belonging to one StreamName.
//
// It is the input of Create and the fully buffered result of Load.
type Stream struct {
	streamName StreamName
	messages   Messages
}

// BuildStream is a factory method for Stream.
func BuildStream(streamName StreamName, messages ...Message) Stream {
	return Stream{
		streamName: streamName,
		messages:   messages,
	}
}

func (s Stream) StreamName() StreamName {
	return s.streamName
}

func (s Stream) Messages() Messages {
	return s.messages
}

// IsEmpty reports whether the stream does not contain a single Message.
func (s Stream) IsEmpty() bool {
	return len(s.messages) == 0
}

// First returns the first Message of the stream, the representative one for schema derivation.
func (s Stream) First() (Message, bool) {
	if s.IsEmpty() {
		return nil, false
	}

	return s.messages[0], true
}
