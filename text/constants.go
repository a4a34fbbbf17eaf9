package text

// Command is a text protocol command name.
type Command string

const (
	CmdSet      Command = "set"
	CmdAdd      Command = "add"
	CmdReplace  Command = "replace"
	CmdGet      Command = "get"
	CmdDelete   Command = "delete"
	CmdIncr     Command = "incr"
	CmdDecr     Command = "decr"
	CmdFlushAll Command = "flush_all"
	CmdStats    Command = "stats"
	CmdVersion  Command = "version"
)

// IsStorage reports whether the command carries a data block.
func (c Command) IsStorage() bool {
	return c == CmdSet || c == CmdAdd || c == CmdReplace
}

// Protocol delimiters
const (
	CRLF  = "\r\n"
	Space = " "
)

// Reply lines
const (
	ReplyStored    = "STORED"
	ReplyNotStored = "NOT_STORED"
	ReplyExists    = "EXISTS"
	ReplyNotFound  = "NOT_FOUND"
	ReplyDeleted   = "DELETED"
	ReplyOK        = "OK"
	ReplyEnd       = "END"

	ValuePrefix   = "VALUE"
	StatPrefix    = "STAT"
	VersionPrefix = "VERSION"
)

// Error replies
const (
	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// ErrorNonNumeric is the CLIENT_ERROR message sent by memcached when incr or
// decr targets a value that is not a decimal number.
const ErrorNonNumeric = "cannot increment or decrement non-numeric value"

// Key limits
const (
	MinKeyLength = 1
	MaxKeyLength = 250
)

// MaxValueSize is the largest data block accepted in a VALUE line, the upper
// bound of memcached's item size setting (-I). Larger sizes are a protocol error.
const MaxValueSize = 1 << 30
