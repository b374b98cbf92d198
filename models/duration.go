package models

import (
	"errors"
	"strconv"
	"strings"
)

const (
	MinVideoDuration = 5
	MaxVideoDuration = 60
)

var ErrInvalidDuration = errors.New("please enter a valid duration between 5 and 60 seconds")

// ParseVideoDuration 只接受 [5,60] 内的整数秒，"30abc" 之类视为非法
func ParseVideoDuration(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidDuration
	}
	if n < MinVideoDuration || n > MaxVideoDuration {
		return 0, ErrInvalidDuration
	}
	return n, nil
}
