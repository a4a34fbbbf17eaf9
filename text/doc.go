// Package text implements the memcached text protocol.
//
// The package is split in two halves: request encoding (WriteRequest) and
// typed response decoding, one reader per reply shape:
//
//	ReadStoreResponse   set, add, replace
//	ReadGetResponse     get
//	ReadDeleteResponse  delete
//	ReadArithResponse   incr, decr
//	ReadOKResponse      flush_all
//	ReadStatsResponse   stats
//	ReadVersionResponse version
//
// Server-reported failures are returned as *ClientError, *ServerError or
// *GenericError. Replies that cannot be parsed are returned as *ProtocolError
// and stream failures as *IOError. Use ShouldCloseConnection to decide whether
// a connection can be reused after an error.
//
// Protocol reference: https://github.com/memcached/memcached/blob/master/doc/protocol.txt
package text
