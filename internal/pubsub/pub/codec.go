package pub

import "encoding/json"

func defaultCodec[T any](msg T) ([]byte, error) {
	return json.Marshal(msg)
}
