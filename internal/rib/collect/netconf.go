package collect

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/DrC0ns0le/net-topo/internal/config"
)

const netconfBaseCapability = "urn:ietf:params:xml:ns:netconf:base:1.0"

// endOfMessage is the NETCONF 1.0 framing delimiter. The session only
// negotiates base:1.0, so chunked framing never applies.
const endOfMessage = "]]>]]>"

const helloMessage = `<?xml version="1.0" encoding="UTF-8"?>
<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>urn:ietf:params:xml:ns:netconf:base:1.0</capability>
  </capabilities>
</hello>
` + endOfMessage

// netconfSession is a minimal NETCONF client over the SSH "netconf"
// subsystem: hello exchange, <get> with a subtree filter, and bare RPC
// dispatch. Enough surface for RIB collection, nothing more.
type netconfSession struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  *bufio.Reader

	capabilities []string
	messageID    int
}

type helloReply struct {
	Capabilities []string `xml:"capabilities>capability"`
}

type rpcReply struct {
	Errors []rpcError `xml:"rpc-error"`
	Data   innerXML   `xml:"data"`
}

type rpcError struct {
	Severity string `xml:"error-severity"`
	Message  string `xml:"error-message"`
}

type innerXML struct {
	Raw string `xml:",innerxml"`
}

// dialNetconf connects to a device and completes the hello exchange.
// The timeout covers the SSH handshake; ctx bounds the hello exchange
// and any later traffic guarded by abortOnCancel.
func dialNetconf(ctx context.Context, device config.Device, timeout time.Duration) (*netconfSession, error) {
	sshConfig := &ssh.ClientConfig{
		User: device.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(device.Password),
		},
		// Lab inventory; host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", device.Host, device.Port)
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh dial %s", addr)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "opening ssh session")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "stdout pipe")
	}

	if err := session.RequestSubsystem("netconf"); err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "requesting netconf subsystem")
	}

	s := &netconfSession{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
	}
	stop := s.abortOnCancel(ctx)
	defer stop()

	if _, err := io.WriteString(s.stdin, helloMessage); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "sending hello")
	}
	peerHello, err := s.readMessage()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "reading peer hello")
	}

	var hello helloReply
	if err := xml.Unmarshal([]byte(peerHello), &hello); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "parsing peer hello")
	}
	s.capabilities = hello.Capabilities

	supported := false
	for _, c := range s.capabilities {
		if strings.HasPrefix(c, netconfBaseCapability) {
			supported = true
			break
		}
	}
	if !supported {
		s.Close()
		return nil, errors.Errorf("peer does not advertise %s", netconfBaseCapability)
	}

	return s, nil
}

// Capabilities returns the peer's advertised capability URIs.
func (s *netconfSession) Capabilities() []string {
	return s.capabilities
}

// Get performs a <get> with the given subtree filter and returns the
// contents of the reply's <data> element.
func (s *netconfSession) Get(filter string) (string, error) {
	payload := fmt.Sprintf(
		`<get><filter xmlns="%s">%s</filter></get>`, netconfBaseCapability, filter)
	return s.RPC(payload)
}

// RPC wraps the payload in an <rpc> envelope, dispatches it, and returns
// the reply's <data> contents. RPC errors of severity error fail the call.
func (s *netconfSession) RPC(payload string) (string, error) {
	s.messageID++
	msg := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><rpc message-id="%d" xmlns="%s">%s</rpc>%s`,
		s.messageID, netconfBaseCapability, payload, endOfMessage)

	if _, err := io.WriteString(s.stdin, msg); err != nil {
		return "", errors.Wrap(err, "sending rpc")
	}
	raw, err := s.readMessage()
	if err != nil {
		return "", errors.Wrap(err, "reading rpc reply")
	}

	var reply rpcReply
	if err := xml.Unmarshal([]byte(raw), &reply); err != nil {
		return "", errors.Wrap(err, "parsing rpc reply")
	}
	for _, e := range reply.Errors {
		if strings.EqualFold(e.Severity, "error") {
			return "", errors.Errorf("rpc error: %s", strings.TrimSpace(e.Message))
		}
	}
	return reply.Data.Raw, nil
}

// abortOnCancel closes the session once ctx is cancelled so that reads
// blocked in readMessage return. The returned stop func releases the
// watcher without closing anything.
func (s *netconfSession) abortOnCancel(ctx context.Context) (stop func()) {
	f := context.AfterFunc(ctx, func() { s.Close() })
	return func() { f() }
}

// readMessage reads one message up to the end-of-message delimiter.
func (s *netconfSession) readMessage() (string, error) {
	var buf bytes.Buffer
	delim := []byte(endOfMessage)
	for {
		b, err := s.stdout.ReadByte()
		if err != nil {
			return "", err
		}
		buf.WriteByte(b)
		if bytes.HasSuffix(buf.Bytes(), delim) {
			msg := buf.String()
			return msg[:len(msg)-len(endOfMessage)], nil
		}
	}
}

// Close may be called more than once; the abort watcher and the owner's
// deferred cleanup can race on it harmlessly.
func (s *netconfSession) Close() error {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.session != nil {
		s.session.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
