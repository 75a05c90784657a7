package notifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
)

func newTestNotifier(cfg Config) *EmailNotifier {
	return New(cfg, logger.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func TestBuildMessageWithAttachment(t *testing.T) {
	t.Parallel()

	csvData := []byte("identifier,seller\n123,Seller A\n")
	payload := buildMessage("reports@example.com", []string{"ops@example.com", "sales@example.com"}, Message{
		Subject:        "Off-Price Report",
		Body:           "Report attached.",
		AttachmentName: "report.csv",
		Attachment:     csvData,
	})

	parsed, err := mail.ReadMessage(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "reports@example.com", parsed.Header.Get("From"))
	require.Equal(t, "ops@example.com, sales@example.com", parsed.Header.Get("To"))
	require.Equal(t, "Off-Price Report", parsed.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	textPart, err := reader.NextPart()
	require.NoError(t, err)
	textBody, err := io.ReadAll(textPart)
	require.NoError(t, err)
	require.Equal(t, "Report attached.", string(textBody))

	attachPart, err := reader.NextPart()
	require.NoError(t, err)
	require.Equal(t, "report.csv", attachPart.FileName())
	require.Equal(t, "base64", attachPart.Header.Get("Content-Transfer-Encoding"))

	encoded, err := io.ReadAll(attachPart)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	require.Equal(t, csvData, decoded)
}

func TestBuildMessagePlainTextWithoutAttachment(t *testing.T) {
	t.Parallel()

	payload := buildMessage("reports@example.com", []string{"ops@example.com"}, Message{
		Subject: "Test Email",
		Body:    "SMTP settings look good.",
	})

	parsed, err := mail.ReadMessage(bytes.NewReader(payload))
	require.NoError(t, err)

	mediaType, _, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "text/plain", mediaType)

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	require.Equal(t, "SMTP settings look good.", string(body))
}

func TestBuildMessageBase64LinesStayWithinLimit(t *testing.T) {
	t.Parallel()

	payload := buildMessage("reports@example.com", []string{"ops@example.com"}, Message{
		Subject:        "Report",
		Body:           "x",
		AttachmentName: "report.csv",
		Attachment:     bytes.Repeat([]byte("abcdefghij"), 100),
	})

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		require.LessOrEqual(t, len(scanner.Text()), 998, "line exceeds RFC 5322 limit")
	}
	require.NoError(t, scanner.Err())
}

func TestSendWithoutAnyRecipientsFails(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(Config{Host: "localhost", Port: 2525, From: "reports@example.com"})

	err := n.Send(context.Background(), Message{Subject: "Report", Body: "body"})
	require.ErrorIs(t, err, domain.ErrNotificationFailure)
}

func TestSendFallsBackToDefaultRecipients(t *testing.T) {
	t.Parallel()

	// The SMTP exchange runs against a minimal scripted server; the test
	// asserts the fallback recipient reaches RCPT TO.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rcpts := make(chan string, 4)
	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		tc := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
		reply := func(s string) {
			_, _ = tc.WriteString(s + "\r\n")
			_ = tc.Flush()
		}

		reply("220 test ESMTP")
		for {
			line, readErr := tc.ReadString('\n')
			if readErr != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 ok")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				reply("250 ok")
			case strings.HasPrefix(cmd, "RCPT TO"):
				rcpts <- strings.TrimSpace(line)
				reply("250 ok")
			case strings.HasPrefix(cmd, "DATA"):
				reply("354 go ahead")
				for {
					dataLine, dataErr := tc.ReadString('\n')
					if dataErr != nil {
						return
					}
					if strings.TrimRight(dataLine, "\r\n") == "." {
						break
					}
				}
				reply("250 ok")
			case strings.HasPrefix(cmd, "QUIT"):
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	n := newTestNotifier(Config{
		Host:              host,
		Port:              port,
		From:              "reports@example.com",
		DefaultRecipients: []string{"fallback@example.com"},
	})

	err = n.Send(context.Background(), Message{Subject: "Report", Body: "body"})
	require.NoError(t, err)

	select {
	case rcpt := <-rcpts:
		require.Contains(t, rcpt, "fallback@example.com")
	default:
		t.Fatal("server recorded no RCPT TO command")
	}
}
