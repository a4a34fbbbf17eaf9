package text

// Request is a single text protocol command.
//
// Only the fields relevant to Command are encoded:
//
//	set/add/replace  Keys[0] Flags Exptime len(Data) + data block
//	get              Keys...
//	delete           Keys[0] [Exptime]
//	incr/decr        Keys[0] Delta
//	flush_all        [Exptime]
//	stats            Args...
//	version
type Request struct {
	Command Command
	Keys    []string
	Data    []byte
	Flags   uint32
	Exptime int64
	Delta   uint64
	Args    []string
}

// NewStoreRequest creates a set, add or replace request.
func NewStoreRequest(cmd Command, key string, data []byte, flags uint32, exptime int64) *Request {
	return &Request{
		Command: cmd,
		Keys:    []string{key},
		Data:    data,
		Flags:   flags,
		Exptime: exptime,
	}
}

// NewGetRequest creates a get request for one or more keys.
func NewGetRequest(keys ...string) *Request {
	return &Request{Command: CmdGet, Keys: keys}
}

// NewDeleteRequest creates a delete request. A zero exptime is omitted from the wire.
func NewDeleteRequest(key string, exptime int64) *Request {
	return &Request{Command: CmdDelete, Keys: []string{key}, Exptime: exptime}
}

// NewArithRequest creates an incr or decr request.
func NewArithRequest(cmd Command, key string, delta uint64) *Request {
	return &Request{Command: cmd, Keys: []string{key}, Delta: delta}
}

// NewFlushAllRequest creates a flush_all request. A zero delay is omitted from the wire.
func NewFlushAllRequest(delay int64) *Request {
	return &Request{Command: CmdFlushAll, Exptime: delay}
}

// NewStatsRequest creates a stats request. Args select a stats group, such as "slabs".
func NewStatsRequest(args ...string) *Request {
	return &Request{Command: CmdStats, Args: args}
}

// NewVersionRequest creates a version request.
func NewVersionRequest() *Request {
	return &Request{Command: CmdVersion}
}

// Key returns the first key of the request, or an empty string.
func (r *Request) Key() string {
	if len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[0]
}
