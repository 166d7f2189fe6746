package thunks

import (
	"bytes"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/statedb"
)

// Prints appends str to the console buffer.
func Prints(ctx *chainctx.Context, args []byte) ([]byte, error) {
	ctx.ConsoleAppend(string(args))
	return nil, nil
}

// GetObject reads from the current state node; an absent key produces
// an empty result rather than an error.
func GetObject(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a objectKeyArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	value, found, err := ctx.GetObject(statedb.Space(a.Space), a.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return []byte{}, nil
	}
	return value, nil
}

// PutObject writes value under (space, key), charging the byte count
// to the meter's disk quota; it reports whether a prior value existed.
func PutObject(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a putObjectArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	_, existed, err := ctx.GetObject(statedb.Space(a.Space), a.Key)
	if err != nil {
		return nil, err
	}
	if err := ctx.PutObject(statedb.Space(a.Space), a.Key, a.Value); err != nil {
		return nil, err
	}
	if err := ctx.Meter().Consume(chainctx.ResourceDisk, uint64(len(a.Value))); err != nil {
		return nil, err
	}
	if existed {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

// RemoveObject deletes (space, key) from the current state node.
func RemoveObject(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a objectKeyArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	if err := ctx.RemoveObject(statedb.Space(a.Space), a.Key); err != nil {
		return nil, err
	}
	return nil, nil
}

// GetNextObject returns the next key (and its value) strictly after
// the given key within space, in ascending order.
func GetNextObject(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return adjacentObject(ctx, args, statedb.Ascending)
}

// GetPrevObject returns the next key (and its value) strictly before
// the given key within space, in descending order.
func GetPrevObject(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return adjacentObject(ctx, args, statedb.Descending)
}

func adjacentObject(ctx *chainctx.Context, args []byte, dir statedb.Direction) ([]byte, error) {
	var a objectKeyArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	it, err := ctx.Range(statedb.Space(a.Space), a.Key, dir)
	if err != nil {
		return nil, err
	}
	for it.Next() {
		if bytes.Equal(it.Key(), a.Key) {
			continue
		}
		return encodeRLP(objectKV{Key: it.Key(), Value: it.Value()})
	}
	return []byte{}, nil
}
