package table

import (
	"time"

	"github.com/xbasedb/xbase/pkg/common/log"
)

// Options tune table behavior. The zero value is usable.
type Options struct {
	// SkipDeleted filters deletion-flagged rows out of iteration
	SkipDeleted bool
	// MemoBlockSize overrides the dialect's default memo block size at
	// creation; ignored when opening an existing memo file
	MemoBlockSize int
	// Logger receives operational events; defaults to the shared logger
	Logger log.Logger
	// Now supplies the clock for header timestamps; defaults to time.Now
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
