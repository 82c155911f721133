package workflow

import "strconv"

func uint64ToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
