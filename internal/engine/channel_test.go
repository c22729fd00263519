package engine

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineChannelSendPreservesOrder(t *testing.T) {
	inR, inW := io.Pipe()   // engine -> channel, unused here
	outR, outW := io.Pipe() // channel -> engine
	defer inW.Close()
	defer inR.Close()

	ch := NewLineChannel(inR, outW)
	defer ch.Close()

	for _, line := range []string{"ucci", "setoption hashsize 64", "position startpos", "go depth 1"} {
		require.NoError(t, ch.Send(line))
	}

	scanner := bufio.NewScanner(outR)
	var got []string
	for len(got) < 4 && scanner.Scan() {
		got = append(got, scanner.Text())
	}
	assert.Equal(t, []string{"ucci", "setoption hashsize 64", "position startpos", "go depth 1"}, got)
}

func TestLineChannelLinesCloseAtEOF(t *testing.T) {
	inR, inW := io.Pipe()
	_, outW := io.Pipe()

	ch := NewLineChannel(inR, outW)
	defer ch.Close()

	go func() {
		io.WriteString(inW, "id name demo\nucciok\n")
		inW.Close()
	}()

	assert.Equal(t, "id name demo", <-ch.Lines())
	assert.Equal(t, "ucciok", <-ch.Lines())

	_, ok := <-ch.Lines()
	assert.False(t, ok, "stream must close at pipe EOF")
}

func TestLineChannelDiscardsInboundAfterClose(t *testing.T) {
	inR, inW := io.Pipe()
	_, outW := io.Pipe()

	ch := NewLineChannel(inR, outW)

	// A dying engine can flush far more lines than the inbound buffer
	// holds. With nobody draining Lines, Close must still let the reader
	// consume the pipe to EOF instead of wedging it on a full channel.
	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		for i := 0; i < 500; i++ {
			io.WriteString(inW, "info depth 1 score cp 0\n")
		}
		inW.Close()
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case <-wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("reader stopped consuming the pipe after Close")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch.Lines():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("inbound stream never closed after Close")
		}
	}
}

func TestLineChannelSendAfterCloseFails(t *testing.T) {
	inR, _ := io.Pipe()
	_, outW := io.Pipe()

	ch := NewLineChannel(inR, outW)
	ch.Close()
	ch.Close() // idempotent

	err := ch.Send("quit")
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestLineChannelSendFailsAfterPeerHangsUp(t *testing.T) {
	inR, _ := io.Pipe()
	outR, outW := io.Pipe()

	ch := NewLineChannel(inR, outW)
	defer ch.Close()

	// The reading side going away makes the next write fail, which must
	// poison the channel rather than wedge the writer.
	outR.Close()
	_ = ch.Send("isready")

	deadline := time.After(2 * time.Second)
	for {
		if err := ch.Send("isready"); err != nil {
			assert.ErrorIs(t, err, ErrChannelClosed)
			return
		}
		select {
		case <-deadline:
			t.Fatal("channel never failed sends after write error")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
