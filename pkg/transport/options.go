// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"time"

	logging "github.com/loopholelabs/logging/types"

	"github.com/tessellate/bridge/pkg/config"
)

// SubmitFunc hands one decoded job to the external job processor. Submission
// is asynchronous: results come back through EnqueueResponse, never as a
// return value.
type SubmitFunc func(job any)

// CancelFunc tells the external job processor to abort the in-flight job.
type CancelFunc func()

type Options struct {
	Config   *config.Config
	Submit   SubmitFunc
	OnCancel CancelFunc
	Logger   logging.Logger

	// AcceptTimeout bounds each accept attempt; ReadTimeout bounds each peer
	// read. Zero values take the package defaults.
	AcceptTimeout time.Duration
	ReadTimeout   time.Duration
}

func validOptions(options *Options) bool {
	return options != nil &&
		options.Config != nil &&
		options.Config.Validate() == nil &&
		options.Submit != nil &&
		options.Logger != nil
}
