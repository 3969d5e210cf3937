package collect

import (
	"bufio"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionReading(wire string) *netconfSession {
	return &netconfSession{stdout: bufio.NewReader(strings.NewReader(wire))}
}

func TestReadMessage(t *testing.T) {
	s := sessionReading("<hello/>]]>]]><next/>]]>]]>")

	first, err := s.readMessage()
	require.NoError(t, err)
	assert.Equal(t, "<hello/>", first)

	second, err := s.readMessage()
	require.NoError(t, err)
	assert.Equal(t, "<next/>", second)
}

func TestReadMessageTruncated(t *testing.T) {
	s := sessionReading("<hello/>]]>]]")
	_, err := s.readMessage()
	assert.Error(t, err, "stream ends before the delimiter")
}

func TestReadMessageUnblocksOnCancel(t *testing.T) {
	// A peer that accepts the session but never finishes its reply must
	// not block the collection goroutine forever.
	pr, pw := io.Pipe()
	s := &netconfSession{stdin: pw, stdout: bufio.NewReader(pr)}

	ctx, cancel := context.WithCancel(context.Background())
	stop := s.abortOnCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.readMessage()
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("readMessage still blocked after cancellation")
	}
}

func TestAbortOnCancelStopReleasesWatcher(t *testing.T) {
	pr, pw := io.Pipe()
	s := &netconfSession{stdin: pw, stdout: bufio.NewReader(pr)}

	ctx, cancel := context.WithCancel(context.Background())
	stop := s.abortOnCancel(ctx)
	stop()
	cancel()

	// The session stays usable after the watcher is released.
	go func() {
		io.WriteString(pw, "<ok/>"+endOfMessage)
	}()
	msg, err := s.readMessage()
	require.NoError(t, err)
	assert.Equal(t, "<ok/>", msg)
}

func TestRPCErrorDetection(t *testing.T) {
	raw := `<rpc-reply message-id="1" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
		<rpc-error>
			<error-severity>error</error-severity>
			<error-message>access denied</error-message>
		</rpc-error>
	</rpc-reply>`

	var reply rpcReply
	require.NoError(t, xml.Unmarshal([]byte(raw), &reply))
	require.Len(t, reply.Errors, 1)
	assert.Equal(t, "error", reply.Errors[0].Severity)
	assert.Contains(t, reply.Errors[0].Message, "access denied")
}

func TestRPCReplyDataExtraction(t *testing.T) {
	raw := `<rpc-reply message-id="1" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
		<data><routing-state><route/></routing-state></data>
	</rpc-reply>`

	var reply rpcReply
	require.NoError(t, xml.Unmarshal([]byte(raw), &reply))
	assert.Contains(t, reply.Data.Raw, "<routing-state>")
}

func TestDetectVendor(t *testing.T) {
	vendor, err := detectVendor([]string{
		"urn:ietf:params:xml:ns:netconf:base:1.0",
		"http://cisco.com/ns/yang/Cisco-IOS-XE-native",
	})
	require.NoError(t, err)
	assert.Equal(t, "cisco", vendor)

	vendor, err = detectVendor([]string{"http://arista.com/yang/openconfig"})
	require.NoError(t, err)
	assert.Equal(t, "arista", vendor)

	vendor, err = detectVendor([]string{"http://xml.juniper.net/netconf/junos/1.0"})
	require.NoError(t, err)
	assert.Equal(t, "juniper", vendor)

	_, err = detectVendor([]string{"urn:huawei:yang:huawei-ifm"})
	assert.Error(t, err)

	_, err = detectVendor([]string{"urn:ietf:params:xml:ns:netconf:base:1.0"})
	assert.Error(t, err, "no vendor hint in capabilities")
}
