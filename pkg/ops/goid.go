package ops

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGID parses the current goroutine id from the runtime stack header
// ("goroutine N [running]:"). The ownership assertions compare against it.
func curGID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	i := bytes.IndexByte(s, ' ')
	if i <= 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(s[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
