// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"net"
	"testing"
	"time"

	"github.com/loopholelabs/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptTimeout(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	lis, err := New(&Options{
		Addr:   "127.0.0.1:0",
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, lis.Close())
	})

	_, err = lis.Accept(20 * time.Millisecond)
	assert.ErrorIs(t, err, TimeoutErr)
}

func TestAcceptPeer(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	lis, err := New(&Options{
		Addr:   "127.0.0.1:0",
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, lis.Close())
	})

	peerDone := make(chan error, 1)
	go func() {
		peer, dialErr := net.Dial("tcp", lis.Addr().String())
		if dialErr == nil {
			_ = peer.Close()
		}
		peerDone <- dialErr
	}()

	conn, err := lis.Accept(time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, <-peerDone)
}

func TestAcceptAfterClose(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	lis, err := New(&Options{
		Addr:   "127.0.0.1:0",
		Logger: logger,
	})
	require.NoError(t, err)
	require.NoError(t, lis.Close())
	require.NoError(t, lis.Close())

	_, err = lis.Accept(time.Second)
	assert.ErrorIs(t, err, ClosedErr)
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, OptionsErr)

	_, err = New(&Options{Addr: "127.0.0.1:0"})
	assert.ErrorIs(t, err, OptionsErr)
}
