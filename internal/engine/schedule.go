package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GoatGit/semibot/internal/types"
)

// ParseSchedule converts a trigger schedule expression into a tick interval.
// Two forms are supported: "@every:<seconds>" with a positive decimal number
// of seconds, and the cron shorthand "*/N * * * *" meaning every N minutes.
// Anything else wraps types.ErrScheduleUnsupported; general cron is out of
// scope.
func ParseSchedule(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(s, "@every:"); ok {
		secs, err := strconv.ParseFloat(rest, 64)
		if err != nil || secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("schedule %q: %w", s, types.ErrScheduleUnsupported)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	fields := strings.Fields(s)
	if len(fields) == 5 && fields[1] == "*" && fields[2] == "*" && fields[3] == "*" && fields[4] == "*" {
		if rest, ok := strings.CutPrefix(fields[0], "*/"); ok {
			n, err := strconv.Atoi(rest)
			if err == nil && n > 0 {
				return time.Duration(n) * time.Minute, nil
			}
		}
	}

	return 0, fmt.Errorf("schedule %q: %w", s, types.ErrScheduleUnsupported)
}
