package notifier

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

const base64LineLength = 76

// buildMessage renders an RFC 5322 message. With an attachment the result is
// multipart/mixed (text part plus base64 CSV part); without one it is plain
// text.
func buildMessage(from string, recipients []string, msg Message) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(recipients, ", "))
	writeHeader(&buf, "Subject", msg.Subject)
	writeHeader(&buf, "MIME-Version", "1.0")

	if len(msg.Attachment) == 0 {
		writeHeader(&buf, "Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes()
	}

	mw := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, mw.Boundary()))
	buf.WriteString("\r\n")

	textPart, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="utf-8"`},
	})
	fmt.Fprint(textPart, msg.Body)

	attachmentPart, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf(`text/csv; name="%s"`, msg.AttachmentName)},
		"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s"`, msg.AttachmentName)},
		"Content-Transfer-Encoding": {"base64"},
	})
	writeBase64(attachmentPart, msg.Attachment)

	_ = mw.Close()
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// writeBase64 encodes data in 76-character lines per RFC 2045.
func writeBase64(w io.Writer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for start := 0; start < len(encoded); start += base64LineLength {
		end := min(start+base64LineLength, len(encoded))
		fmt.Fprintf(w, "%s\r\n", encoded[start:end])
	}
}
