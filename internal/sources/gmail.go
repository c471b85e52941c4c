package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

const (
	gmailUser = "me"
	// GmailQuery selects unread inbox messages that are not drafts
	GmailQuery = "in:inbox -in:draft is:unread"
	// DefaultGmailLimit is how many messages a Gmail source fetches
	DefaultGmailLimit = 50
)

// GmailConfig points at the OAuth client credentials and a stored token
type GmailConfig struct {
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `json:"token_file" yaml:"token_file"`
	Limit           int    `json:"limit" yaml:"limit"`
}

// GmailSource reads unread inbox messages through the Gmail API
type GmailSource struct {
	cfg        GmailConfig
	newService func(ctx context.Context) (*gmail.Service, error)
}

// NewGmailSource creates a new GmailSource instance
func NewGmailSource(cfg GmailConfig) *GmailSource {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultGmailLimit
	}
	s := &GmailSource{cfg: cfg}
	s.newService = s.oauthService
	return s
}

// Name returns the source name
func (s *GmailSource) Name() string {
	return "gmail"
}

// oauthService builds the API client from the credentials file and the
// stored token. There is no interactive consent flow in a pipeline run.
func (s *GmailSource) oauthService(ctx context.Context) (*gmail.Service, error) {
	b, err := os.ReadFile(s.cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	tok, err := tokenFromFile(s.cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no stored token: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
}

// Collect lists matching messages and fetches each one in full
func (s *GmailSource) Collect(ctx context.Context) ([]ingest.Record, error) {
	srv, err := s.newService(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	list, err := srv.Users.Messages.List(gmailUser).
		Q(GmailQuery).
		MaxResults(int64(s.cfg.Limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrSourceUnavailable, err)
	}

	var records []ingest.Record
	for _, ref := range list.Messages {
		msg, err := srv.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			log.WithFields(log.Fields{
				"source":     s.Name(),
				"message_id": ref.Id,
				"error":      err.Error(),
			}).Warn("[Sources] Failed to fetch Gmail message")
			continue
		}
		records = append(records, ingest.FromMail(s.Name(), len(records), parseGmailMessage(msg)))
	}
	return records, nil
}

func parseGmailMessage(msg *gmail.Message) ingest.MailRecord {
	rec := ingest.MailRecord{ID: msg.Id}
	if msg.Payload == nil {
		rec.Body = msg.Snippet
		return rec
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			rec.Subject = header.Value
		case "From":
			rec.From = header.Value
		case "To":
			for _, to := range strings.Split(header.Value, ",") {
				if to = strings.TrimSpace(to); to != "" {
					rec.To = append(rec.To, to)
				}
			}
		case "Date":
			if date, err := ingest.ParseTimestamp(header.Value); err == nil {
				rec.Date = date
			}
		}
	}

	rec.Body = partBody(msg.Payload, "text/plain")
	if rec.Body == "" {
		rec.HTMLBody = partBody(msg.Payload, "text/html")
	}
	if rec.Body == "" && rec.HTMLBody == "" {
		rec.Body = msg.Snippet
	}
	rec.Attachments = attachmentNames(msg.Payload)
	return rec
}

// partBody returns the first decoded part of the given MIME type
func partBody(payload *gmail.MessagePart, mimeType string) string {
	if strings.EqualFold(payload.MimeType, mimeType) && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(payload.Body.Data)
		}
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		if body := partBody(part, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func attachmentNames(payload *gmail.MessagePart) []string {
	var names []string
	if payload.Filename != "" {
		names = append(names, payload.Filename)
	}
	for _, part := range payload.Parts {
		names = append(names, attachmentNames(part)...)
	}
	return names
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
