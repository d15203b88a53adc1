package amplifier

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// LircSender sends one-shot commands through the lircd UNIX socket.
//
// Each Send dials a fresh connection. lircd broadcasts received button
// presses to every connected client; a short-lived connection per command
// keeps the reply parser from having to skip that traffic between sends.
type LircSender struct {
	socketPath string
	logger     Logger
}

// NewLircSender creates a sender for the given lircd socket path.
func NewLircSender(socketPath string, logger Logger) *LircSender {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LircSender{socketPath: socketPath, logger: logger}
}

// Send implements Sender. It issues SEND_ONCE and waits for lircd's
// BEGIN..END reply packet.
//
// Parameters:
//   - ctx: Bounds the whole exchange including the dial
//   - remote: Remote name from the lircd configuration
//   - command: Key name on that remote
//
// Returns:
//   - error: If the socket is unreachable or lircd reports ERROR
func (s *LircSender) Send(ctx context.Context, remote, command string) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("amplifier: connecting to lircd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("amplifier: setting deadline: %w", err)
		}
	}

	request := fmt.Sprintf("SEND_ONCE %s %s", remote, command)
	s.logger.Debug("sending lirc command", "request", request)
	if _, err := fmt.Fprintf(conn, "%s\n", request); err != nil {
		return fmt.Errorf("amplifier: writing to lircd: %w", err)
	}

	if err := readReply(bufio.NewReader(conn), request); err != nil {
		return err
	}
	return nil
}

// readReply consumes one lircd reply packet for the given request.
//
// The packet format is:
//
//	BEGIN
//	<request echoed back>
//	SUCCESS | ERROR
//	[DATA
//	 <n>
//	 <n lines>]
//	END
//
// Packets echoing a different request (broadcast traffic that slipped in
// before ours) are skipped.
func readReply(r *bufio.Reader, request string) error {
	for {
		if err := expectLine(r, "BEGIN"); err != nil {
			return err
		}
		echoed, err := readLine(r)
		if err != nil {
			return err
		}
		status, err := readLine(r)
		if err != nil {
			return err
		}

		var data []string
		next, err := readLine(r)
		if err != nil {
			return err
		}
		if next == "DATA" {
			countLine, err := readLine(r)
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(strings.TrimSpace(countLine))
			if err != nil {
				return fmt.Errorf("amplifier: bad DATA count %q from lircd", countLine)
			}
			for i := 0; i < count; i++ {
				line, err := readLine(r)
				if err != nil {
					return err
				}
				data = append(data, line)
			}
			if next, err = readLine(r); err != nil {
				return err
			}
		}
		if next != "END" {
			return fmt.Errorf("amplifier: expected END from lircd, got %q", next)
		}

		if echoed != request {
			continue
		}

		switch status {
		case "SUCCESS":
			return nil
		case "ERROR":
			return fmt.Errorf("amplifier: lircd rejected %q: %s", request, strings.Join(data, "; "))
		default:
			return fmt.Errorf("amplifier: unexpected lircd status %q", status)
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("amplifier: reading lircd reply: %w", err)
	}
	return strings.TrimRight(line, "\n"), nil
}

func expectLine(r *bufio.Reader, want string) error {
	got, err := readLine(r)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("amplifier: expected %q from lircd, got %q", want, got)
	}
	return nil
}
