package redis

var (
	SetIfCurrentHash = setIfCurrent.Hash()
	InvalidateHash   = invalidate.Hash()
)
