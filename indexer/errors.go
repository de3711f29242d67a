package indexer

import "errors"

// ErrAlreadySeen means the transaction is already in the processed set.
var ErrAlreadySeen = errors.New("indexer: transaction already seen")
