package memcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Flags set by SetValue to describe how a value was encoded.
// Raw strings and byte slices carry no flag.
const (
	FlagEncoded  uint32 = 1 << 0 // JSON document
	FlagInteger  uint32 = 1 << 1 // signed decimal integer
	FlagUnsigned uint32 = 1 << 2 // unsigned decimal integer
)

const typedFlagsMask = FlagEncoded | FlagInteger | FlagUnsigned

// EncodeValue encodes v for storage and returns the flags describing the encoding.
// Integers are stored as decimal text so that Incr and Decr can operate on them.
func EncodeValue(v any) ([]byte, uint32, error) {
	switch v := v.(type) {
	case []byte:
		return v, 0, nil
	case string:
		return []byte(v), 0, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), FlagInteger, nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), FlagInteger, nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), FlagInteger, nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), FlagInteger, nil
	case int64:
		return strconv.AppendInt(nil, v, 10), FlagInteger, nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), FlagUnsigned, nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), FlagUnsigned, nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), FlagUnsigned, nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), FlagUnsigned, nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), FlagUnsigned, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("memcache: encode value: %w", err)
	}
	return data, FlagEncoded, nil
}

// DecodeValue decodes data stored with flags into dst, a non-nil pointer.
// Values without encoding flags can only be decoded into *[]byte or *string.
// Other flag bits are ignored.
func DecodeValue(data []byte, flags uint32, dst any) error {
	if flags&typedFlagsMask != 0 {
		// Decimal integers are valid JSON numbers.
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("memcache: decode value: %w", err)
		}
		return nil
	}

	switch d := dst.(type) {
	case *[]byte:
		*d = data
	case *string:
		*d = string(data)
	default:
		return fmt.Errorf("memcache: cannot decode raw value into %T", dst)
	}
	return nil
}

// SetValue encodes v with EncodeValue and stores it under key.
func (c *Client) SetValue(ctx context.Context, key string, v any, expiration time.Duration) error {
	return c.storeValue(ctx, c.Set, key, v, expiration)
}

// AddValue is SetValue for keys that do not exist yet. It returns false if the key exists.
func (c *Client) AddValue(ctx context.Context, key string, v any, expiration time.Duration) (bool, error) {
	return c.storeValueCond(ctx, c.Add, key, v, expiration)
}

// ReplaceValue is SetValue for keys that exist. It returns false if the key does not exist.
func (c *Client) ReplaceValue(ctx context.Context, key string, v any, expiration time.Duration) (bool, error) {
	return c.storeValueCond(ctx, c.Replace, key, v, expiration)
}

func (c *Client) storeValue(ctx context.Context, store func(context.Context, Item) (bool, error), key string, v any, expiration time.Duration) error {
	_, err := c.storeValueCond(ctx, store, key, v, expiration)
	return err
}

func (c *Client) storeValueCond(ctx context.Context, store func(context.Context, Item) (bool, error), key string, v any, expiration time.Duration) (bool, error) {
	data, flags, err := EncodeValue(v)
	if err != nil {
		return false, err
	}
	return store(ctx, Item{Key: key, Value: data, Flags: flags, Expiration: expiration})
}

// GetValue fetches key and decodes it into dst with DecodeValue.
// It returns false without touching dst on a miss.
func (c *Client) GetValue(ctx context.Context, key string, dst any) (bool, error) {
	item, err := c.Get(ctx, key)
	if err != nil || !item.Found {
		return false, err
	}
	if err := DecodeValue(item.Value, item.Flags, dst); err != nil {
		return false, err
	}
	return true, nil
}
