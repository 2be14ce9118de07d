package sqlite

var (
	EncodeVector = encodeVector
	DecodeVector = decodeVector
)
