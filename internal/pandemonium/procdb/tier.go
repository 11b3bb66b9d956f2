package procdb

import "github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"

func tierFromByte(b uint8) task.Tier {
	return task.Tier(b)
}
