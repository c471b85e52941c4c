package sources

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

// parseMIME decodes a raw RFC 5322 message into a mail record. Header
// fields already known from an envelope are kept when non-empty.
func parseMIME(raw []byte, rec *ingest.MailRecord) error {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return err
	}

	h := mail.Header{Header: entity.Header}
	if rec.ID == "" {
		if id, err := h.MessageID(); err == nil {
			rec.ID = id
		}
	}
	if rec.Subject == "" {
		if subject, err := h.Subject(); err == nil {
			rec.Subject = subject
		}
	}
	if rec.From == "" {
		if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
			rec.From = formatMailAddress(from[0])
		}
	}
	if len(rec.To) == 0 {
		if to, err := h.AddressList("To"); err == nil {
			for _, addr := range to {
				rec.To = append(rec.To, formatMailAddress(addr))
			}
		}
	}
	if rec.Date.IsZero() {
		if date, err := h.Date(); err == nil {
			rec.Date = date
		}
	}

	var plain []string
	walkEntity(entity, rec, &plain)
	if len(plain) > 0 {
		rec.Body = strings.Join(plain, "\n")
	}

	if rec.ID == "" {
		sum := sha256.Sum256(raw)
		rec.ID = "sha256:" + hex.EncodeToString(sum[:8])
	}
	return nil
}

// walkEntity collects text/plain parts, the first text/html part and
// attachment file names
func walkEntity(entity *message.Entity, rec *ingest.MailRecord, plain *[]string) {
	mediaType, params, _ := entity.Header.ContentType()

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			walkEntity(part, rec, plain)
		}
		return
	}

	filename := attachmentName(entity, params)
	switch {
	case filename != "":
		rec.Attachments = append(rec.Attachments, filename)
	case mediaType == "text/plain" || mediaType == "":
		body, _ := io.ReadAll(entity.Body)
		if text := strings.TrimSpace(string(body)); text != "" {
			*plain = append(*plain, text)
		}
	case mediaType == "text/html" && rec.HTMLBody == "":
		body, _ := io.ReadAll(entity.Body)
		rec.HTMLBody = string(body)
	case !strings.HasPrefix(mediaType, "text/"):
		rec.Attachments = append(rec.Attachments, "attachment"+extensionFor(mediaType))
	}
}

// attachmentName returns the decoded file name of an attachment part, or
// "" when the part is inline body text
func attachmentName(entity *message.Entity, params map[string]string) string {
	var filename string
	if disp := entity.Header.Get("Content-Disposition"); disp != "" {
		dispType, dispParams, err := mime.ParseMediaType(disp)
		if err == nil && (dispType == "attachment" || dispParams["filename"] != "") {
			filename = dispParams["filename"]
			if filename == "" {
				filename = "attachment"
			}
		}
	}
	if filename == "" {
		filename = params["name"]
	}
	if filename != "" {
		dec := new(mime.WordDecoder)
		if decoded, err := dec.DecodeHeader(filename); err == nil {
			filename = decoded
		}
	}
	return filename
}

func extensionFor(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return "." + strings.TrimPrefix(mediaType, "image/")
	case mediaType == "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func formatMailAddress(addr *mail.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Address)
	}
	return addr.Address
}
