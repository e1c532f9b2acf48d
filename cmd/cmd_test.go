package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/application"
	"github.com/aqez/undaunted/internal/undaunted/config"
	"github.com/aqez/undaunted/internal/undaunted/delivery"
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(testing *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	testing.Setenv("UNDAUNTED_HOME", testing.TempDir())
	cmd, err := newRootCmd("1.2.3")
	require.NoError(testing, err)
	out := bytes.NewBufferString("")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-stderr"))
	err = cmd.ExecuteContext(ctx)
	return out.String(), err
}

func startPeer(testing *testing.T) *application.Application {
	cfg := config.DefaultConfig()
	cfg.BindAddress = "127.0.0.1:0"
	peer := application.New(cfg)
	require.NoError(testing, peer.Start(context.Background()))
	testing.Cleanup(func() { peer.Stop() })
	return peer
}

func TestCommandHelp(testing *testing.T) {
	for _, command := range []string{"listen", "send", "chat", "config", "service", "version"} {
		// GIVEN / WHEN
		out, err := execute(testing, context.Background(), "", command, "-h")

		// THEN
		require.NoError(testing, err, command)
		assert.Contains(testing, out, "Usage:", command)
	}
}

func TestVersion(testing *testing.T) {
	// GIVEN / WHEN
	out, err := execute(testing, context.Background(), "", "version")

	// THEN
	require.NoError(testing, err)
	assert.Equal(testing, "undaunted 1.2.3\n", out)
}

func TestConfigInitRefusesOverwrite(testing *testing.T) {
	// GIVEN
	configFile := filepath.Join(testing.TempDir(), "config.yaml")
	_, err := execute(testing, context.Background(), "", "config", "init", "-c", configFile)
	require.NoError(testing, err)
	first, err := config.LoadConfig(configFile)
	require.NoError(testing, err)

	// WHEN
	_, errWithoutForce := execute(testing, context.Background(), "", "config", "init", "-c", configFile)
	_, errWithForce := execute(testing, context.Background(), "", "config", "init", "-c", configFile, "--force")

	// THEN
	assert.Error(testing, errWithoutForce)
	require.NoError(testing, errWithForce)
	second, err := config.LoadConfig(configFile)
	require.NoError(testing, err)
	assert.NotEqual(testing, first.NodeID, second.NodeID)
}

func TestConfigShow(testing *testing.T) {
	// GIVEN
	configFile := filepath.Join(testing.TempDir(), "config.yaml")
	require.NoError(testing, os.WriteFile(configFile, []byte("sendInterval: 7ms\n"), 0o600))

	// WHEN
	out, err := execute(testing, context.Background(), "", "config", "show", "-c", configFile)

	// THEN
	require.NoError(testing, err)
	assert.Contains(testing, out, "sendInterval: 7ms")
	assert.Contains(testing, out, "bindAddress: 0.0.0.0:1337")
}

func TestSendDeliversToPeer(testing *testing.T) {
	// GIVEN
	peer := startPeer(testing)

	// WHEN
	out, err := execute(testing, context.Background(), "", "send", peer.LocalAddr().String(), "hi there", "--bind", "127.0.0.1:0")

	// THEN
	require.NoError(testing, err)
	assert.Contains(testing, out, "Delivered 8 bytes to "+peer.LocalAddr().String())
	received := peer.Receive()
	require.Len(testing, received, 1)
	assert.Equal(testing, packets.Talk{Phrase: "hi there"}, received[0].Packet.Payload)
}

func TestSendTimesOutWithoutPeer(testing *testing.T) {
	// GIVEN
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(testing, err)
	silent := conn.LocalAddr().String()
	defer conn.Close()

	// WHEN
	_, err = execute(testing, context.Background(), "", "send", silent, "anyone?", "--bind", "127.0.0.1:0", "--timeout", "200ms")

	// THEN
	assert.ErrorIs(testing, err, ErrNotDelivered)
}

func TestSendArgsDefaults(testing *testing.T) {
	// GIVEN
	o := &sendOptions{}

	// WHEN
	peer, phrase := o.parseArgs(nil)
	otherPeer, otherPhrase := o.parseArgs([]string{"10.0.0.1:9"})

	// THEN
	assert.Equal(testing, "127.0.0.1:1337", peer)
	assert.Equal(testing, "Hello from undaunted", phrase)
	assert.Equal(testing, "10.0.0.1:9", otherPeer)
	assert.Equal(testing, "Hello from undaunted", otherPhrase)
}

func TestChatSendsEveryLine(testing *testing.T) {
	// GIVEN
	peer := startPeer(testing)

	// WHEN
	out, err := execute(testing, context.Background(), "first\n\nsecond\n", "chat", peer.LocalAddr().String(), "--bind", "127.0.0.1:0")

	// THEN
	require.NoError(testing, err)
	assert.Contains(testing, out, "Chatting with "+peer.LocalAddr().String())
	var phrases []string
	for _, received := range peer.Receive() {
		phrases = append(phrases, received.Packet.Payload.(packets.Talk).Phrase)
	}
	assert.ElementsMatch(testing, []string{"first", "second"}, phrases)
}

func TestListenStopsWithContext(testing *testing.T) {
	// GIVEN
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// WHEN
	out, err := execute(testing, ctx, "", "listen", "--bind", "127.0.0.1:0")

	// THEN
	require.NoError(testing, err)
	assert.Contains(testing, out, "Listening on 127.0.0.1:")
}

func TestPrintReceived(testing *testing.T) {
	// GIVEN
	sender := startPeer(testing)
	listener := startPeer(testing)
	require.NoError(testing, sender.Send("printed", listener.LocalAddr()))
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	out := bytes.NewBufferString("")

	// WHEN
	printReceived(ctx, out, listener)

	// THEN
	assert.Equal(testing, "Received 7 bytes from "+sender.LocalAddr().String()+": printed\n", out.String())
}

func TestPrintPacketSkipsAcks(testing *testing.T) {
	// GIVEN
	out := bytes.NewBufferString("")

	// WHEN
	printPacket(out, delivery.AddressedPacket{Packet: packets.NewPacket(1, packets.Ack{AckedID: 1})})

	// THEN
	assert.Empty(testing, out.String())
}

func TestServiceRejectsUnknownAction(testing *testing.T) {
	// GIVEN / WHEN
	_, err := execute(testing, context.Background(), "", "service", "explode")

	// THEN
	assert.ErrorContains(testing, err, "unknown action: explode")
}
